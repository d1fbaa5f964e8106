package query

import (
	"strconv"
	"strings"
)

// Filter text grammar:
//
//	expr      = andExpr { "or" andExpr }
//	andExpr   = unary { "and" unary }
//	unary     = "not" unary | "(" expr ")" | condition
//	condition = key operator [ value ]
//
// Values are bare words or double quoted strings. The exists operator takes
// no value. Using "==" with a value that is not an integer compares strings.
//
// Example:
//
//	status == active and (age > 3 or name startswith "Mr. ")

type snippet struct {
	text           string
	globalPosition int
	quoted         bool
}

func (sn *snippet) isKeyword(keyword string) bool {
	return !sn.quoted && strings.EqualFold(sn.text, keyword)
}

func (sn *snippet) isSymbol(symbol string) bool {
	return !sn.quoted && sn.text == symbol
}

// ParseCondition parses a textual filter. An empty text matches everything.
func ParseCondition(text string) (Condition, error) {
	snippets, err := extractSnippets(text)
	if err != nil {
		return nil, err
	}
	if len(snippets) == 0 {
		return Everything(), nil
	}

	p := &parser{snippets: snippets}
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if sn := p.peek(); sn != nil {
		return nil, syntaxErr(sn, "unexpected symbol")
	}

	if err := cond.check(); err != nil {
		return nil, err
	}
	return cond, nil
}

// MustParse parses a textual filter and panics on error.
func MustParse(text string) Condition {
	cond, err := ParseCondition(text)
	if err != nil {
		panic(err)
	}
	return cond
}

type parser struct {
	snippets []*snippet
	pos      int
}

func (p *parser) peek() *snippet {
	if p.pos >= len(p.snippets) {
		return nil
	}
	return p.snippets[p.pos]
}

func (p *parser) next() *snippet {
	sn := p.peek()
	if sn != nil {
		p.pos++
	}
	return sn
}

func (p *parser) endErr(msg string) error {
	end := 0
	if len(p.snippets) > 0 {
		last := p.snippets[len(p.snippets)-1]
		end = last.globalPosition + len(last.text)
	}
	return &SyntaxError{Pos: end, Msg: msg}
}

func (p *parser) parseOr() (Condition, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	conditions := []Condition{first}
	for sn := p.peek(); sn != nil && sn.isKeyword("or"); sn = p.peek() {
		p.pos++
		cond, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}

	if len(conditions) == 1 {
		return first, nil
	}
	return Or(conditions...), nil
}

func (p *parser) parseAnd() (Condition, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	conditions := []Condition{first}
	for sn := p.peek(); sn != nil && sn.isKeyword("and"); sn = p.peek() {
		p.pos++
		cond, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}

	if len(conditions) == 1 {
		return first, nil
	}
	return And(conditions...), nil
}

func (p *parser) parseUnary() (Condition, error) {
	sn := p.peek()
	switch {
	case sn == nil:
		return nil, p.endErr("expected condition")
	case sn.isKeyword("not"):
		p.pos++
		cond, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(cond), nil
	case sn.isSymbol("("):
		p.pos++
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing := p.next()
		if closing == nil {
			return nil, p.endErr("missing closing parenthesis")
		}
		if !closing.isSymbol(")") {
			return nil, syntaxErr(closing, "expected closing parenthesis")
		}
		return cond, nil
	default:
		return p.parseCondition()
	}
}

func (p *parser) parseCondition() (Condition, error) {
	key := p.next()
	if key.isSymbol(")") || key.isKeyword("and") || key.isKeyword("or") {
		return nil, syntaxErr(key, "expected key")
	}

	opSnippet := p.next()
	if opSnippet == nil {
		return nil, p.endErr("expected operator")
	}
	operator, ok := operatorNames[strings.ToLower(opSnippet.text)]
	if !ok || opSnippet.quoted {
		return nil, syntaxErr(opSnippet, "unknown operator")
	}
	if operator == Exists {
		return Where(key.text, Exists, nil), nil
	}

	value := p.next()
	if value == nil {
		return nil, p.endErr("expected value")
	}
	if value.isSymbol("(") || value.isSymbol(")") {
		return nil, syntaxErr(value, "expected value")
	}

	cond := Where(key.text, operator, value.text)
	if err := cond.check(); err != nil {
		return nil, syntaxErr(value, err.Error())
	}
	return cond, nil
}

func extractSnippets(text string) ([]*snippet, error) {
	var snippets []*snippet

	for i := 0; i < len(text); {
		switch c := text[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(' || c == ')':
			snippets = append(snippets, &snippet{text: string(c), globalPosition: i})
			i++

		case c == '"':
			end := i + 1
			for ; end < len(text); end++ {
				if text[end] == '\\' {
					end++
					continue
				}
				if text[end] == '"' {
					break
				}
			}
			if end >= len(text) {
				return nil, &SyntaxError{Symbol: text[i:], Pos: i, Msg: "unterminated string"}
			}
			unquoted, err := strconv.Unquote(text[i : end+1])
			if err != nil {
				return nil, &SyntaxError{Symbol: text[i : end+1], Pos: i, Msg: "invalid string"}
			}
			snippets = append(snippets, &snippet{text: unquoted, globalPosition: i, quoted: true})
			i = end + 1

		default:
			start := i
			var word strings.Builder
		word:
			for ; i < len(text); i++ {
				switch text[i] {
				case ' ', '\t', '\n', '\r', '(', ')', '"':
					break word
				case '\\':
					if i+1 < len(text) {
						i++
					}
				}
				word.WriteByte(text[i])
			}
			snippets = append(snippets, &snippet{text: word.String(), globalPosition: start})
		}
	}

	return snippets, nil
}
