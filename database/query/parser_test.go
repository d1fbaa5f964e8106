package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSnippets(t *testing.T) {
	t.Parallel()

	text := `(age > 100 and experience <= "99") or name matches Mr.\"X`
	snippets, err := extractSnippets(text)
	require.NoError(t, err)

	texts := make([]string, 0, len(snippets))
	for _, sn := range snippets {
		texts = append(texts, sn.text)
	}
	assert.Equal(t, []string{
		"(", "age", ">", "100", "and", "experience", "<=", "99", ")",
		"or", "name", "matches", `Mr."X`,
	}, texts)
	assert.True(t, snippets[7].quoted)
	assert.Equal(t, 29, snippets[7].globalPosition)
}

func TestParseCondition(t *testing.T) {
	t.Parallel()

	f := NewJSONFetcher(testJSON)

	for text, shouldMatch := range map[string]bool{
		``:                                         true,
		`age == 100`:                               true,
		`age > 100`:                                false,
		`lastly.yay == final`:                      true,
		`lastly.yay == "final"`:                    true,
		`lastly.yay sameas "draft"`:                false,
		`age >= 99 and happy is true`:              true,
		`age >= 99 AND happy is false`:             false,
		`age > 100 or happy is true`:               true,
		`not (age > 100 or immortal is true)`:      true,
		`not happy is true`:                        false,
		`(age < 10 or age > 50) and lastly ex`:     true,
		`created re "^2014-"`:                      true,
		`lastly.yay in "a,b,final"`:                true,
		`temperature f> 120.4 and temperature f< 121`: true,
	} {
		cond, err := ParseCondition(text)
		if !assert.NoError(t, err, text) {
			continue
		}
		assert.Equal(t, shouldMatch, Complies(cond, f), text)

		// printed conditions parse to an equivalent condition
		reparsed, err := ParseCondition(Print(cond))
		if assert.NoError(t, err, Print(cond)) {
			assert.Equal(t, shouldMatch, Complies(reparsed, f), Print(cond))
		}
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		`age`,
		`age ==`,
		`age foo 1`,
		`(age == 1`,
		`age == 1)`,
		`age == 1 and`,
		`and age == 1`,
		`name == "unterminated`,
		`happy is maybe`,
		`age > abc`,
	} {
		_, err := ParseCondition(text)
		if assert.Error(t, err, text) {
			var syntaxError *SyntaxError
			assert.True(t, errors.As(err, &syntaxError), "%s: %s", text, err)
		}
	}

	assert.Panics(t, func() {
		MustParse(`age ==`)
	})
}
