package query

import (
	"fmt"
	"strings"
)

// ConditionError describes a condition that cannot be evaluated, such as a
// value of the wrong type for its operator.
type ConditionError struct {
	Key    string
	Reason string
}

func (ce *ConditionError) Error() string {
	if ce.Key == "" {
		return ce.Reason
	}
	return ce.Key + ": " + ce.Reason
}

// UnsupportedOperatorError is returned by Check when Where was called with an
// operator that has no condition type.
type UnsupportedOperatorError uint8

func (op UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("operator %d is not supported", uint8(op))
}

// SyntaxError points at the part of a filter text that could not be parsed.
// Pos is the byte offset into the text.
type SyntaxError struct {
	Msg    string
	Pos    int
	Symbol string
}

func (se *SyntaxError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "filter text invalid at offset %d", se.Pos)
	if se.Symbol != "" {
		fmt.Fprintf(&b, " near %q", se.Symbol)
	}
	b.WriteString(": ")
	b.WriteString(se.Msg)
	return b.String()
}

func syntaxErr(sn *snippet, msg string) *SyntaxError {
	return &SyntaxError{
		Msg:    msg,
		Pos:    sn.globalPosition,
		Symbol: sn.text,
	}
}
