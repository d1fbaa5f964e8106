// Package query implements filter conditions over JSON representations of
// records, a small textual filter language, and the value ordering used for
// sorting query results.
package query

import (
	"fmt"
	"strconv"
)

// Condition is a compiled filter. Conditions are created with Where, And,
// Or and Not, or parsed from text with ParseCondition.
type Condition interface {
	complies(f Fetcher) bool
	check() error
	string() string
}

// Operators.
const (
	Equals                  uint8 = iota // int
	GreaterThan                          // int
	GreaterThanOrEqual                   // int
	LessThan                             // int
	LessThanOrEqual                      // int
	FloatEquals                          // float
	FloatGreaterThan                     // float
	FloatGreaterThanOrEqual              // float
	FloatLessThan                        // float
	FloatLessThanOrEqual                 // float
	SameAs                               // string
	Contains                             // string
	StartsWith                           // string
	EndsWith                             // string
	In                                   // stringSlice
	Matches                              // regex
	Is                                   // bool: accepts strings as understood by strconv.ParseBool
	Exists                               // any

	errorPresent uint8 = 255
)

var operatorNames = map[string]uint8{
	"==":         Equals,
	">":          GreaterThan,
	">=":         GreaterThanOrEqual,
	"<":          LessThan,
	"<=":         LessThanOrEqual,
	"f==":        FloatEquals,
	"f>":         FloatGreaterThan,
	"f>=":        FloatGreaterThanOrEqual,
	"f<":         FloatLessThan,
	"f<=":        FloatLessThanOrEqual,
	"sameas":     SameAs,
	"s==":        SameAs,
	"contains":   Contains,
	"co":         Contains,
	"startswith": StartsWith,
	"sw":         StartsWith,
	"endswith":   EndsWith,
	"ew":         EndsWith,
	"in":         In,
	"matches":    Matches,
	"re":         Matches,
	"is":         Is,
	"exists":     Exists,
	"ex":         Exists,
}

// Canonical names used when printing conditions.
var primaryOperatorNames = map[uint8]string{
	Equals:                  "==",
	GreaterThan:             ">",
	GreaterThanOrEqual:      ">=",
	LessThan:                "<",
	LessThanOrEqual:         "<=",
	FloatEquals:             "f==",
	FloatGreaterThan:        "f>",
	FloatGreaterThanOrEqual: "f>=",
	FloatLessThan:           "f<",
	FloatLessThanOrEqual:    "f<=",
	SameAs:                  "sameas",
	Contains:                "contains",
	StartsWith:              "startswith",
	EndsWith:                "endswith",
	In:                      "in",
	Matches:                 "matches",
	Is:                      "is",
	Exists:                  "exists",
}

func getOpName(operator uint8) string {
	name, ok := primaryOperatorNames[operator]
	if !ok {
		return "[unknown]"
	}
	return name
}

// Where returns a condition to check the value found at key with the given
// operator. The key is a gjson path. Equals with a string that is not an
// integer compares strings, like SameAs.
func Where(key string, operator uint8, value interface{}) Condition {
	switch operator {
	case Equals:
		if s, ok := value.(string); ok {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				return newStringCondition(key, SameAs, s)
			}
		}
		return newIntCondition(key, operator, value)
	case GreaterThan,
		GreaterThanOrEqual,
		LessThan,
		LessThanOrEqual:
		return newIntCondition(key, operator, value)
	case FloatEquals,
		FloatGreaterThan,
		FloatGreaterThanOrEqual,
		FloatLessThan,
		FloatLessThanOrEqual:
		return newFloatCondition(key, operator, value)
	case SameAs,
		Contains,
		StartsWith,
		EndsWith:
		return newStringCondition(key, operator, value)
	case In:
		return newStringSliceCondition(key, operator, value)
	case Matches:
		return newRegexCondition(key, operator, value)
	case Is:
		return newBoolCondition(key, operator, value)
	case Exists:
		return newExistsCondition(key, operator)
	default:
		return newErrorCondition(UnsupportedOperatorError(operator))
	}
}

// Check returns the first error found in the condition. A nil condition is
// valid and matches everything.
func Check(c Condition) error {
	if c == nil {
		return nil
	}
	return c.check()
}

// MustBeValid panics if the condition is not valid.
func MustBeValid(c Condition) Condition {
	if err := Check(c); err != nil {
		panic(err)
	}
	return c
}

// Complies returns whether the fetched object satisfies the condition. A nil
// condition matches everything.
func Complies(c Condition, f Fetcher) bool {
	if c == nil {
		return true
	}
	return c.complies(f)
}

// Print returns the textual representation of the condition. The output can
// be parsed again with ParseCondition.
func Print(c Condition) string {
	if c == nil {
		return ""
	}
	s := c.string()
	if len(s) > 1 && s[0] == '(' && s[len(s)-1] == ')' {
		if _, isGroup := c.(*andCond); isGroup {
			return s[1 : len(s)-1]
		}
		if _, isGroup := c.(*orCond); isGroup {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func conditionError(key string, format string, a ...interface{}) error {
	return &ConditionError{
		Key:    key,
		Reason: fmt.Sprintf(format, a...),
	}
}
