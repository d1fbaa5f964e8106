package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

type stringCondition struct {
	key      string
	operator uint8
	value    string
	err      error
}

func newStringCondition(key string, operator uint8, value interface{}) *stringCondition {
	c := &stringCondition{
		key:      key,
		operator: operator,
	}

	switch v := value.(type) {
	case string:
		c.value = v
	case fmt.Stringer:
		c.value = v.String()
	default:
		c.err = conditionError(key, "incompatible value %v for string", value)
	}

	return c
}

func (c *stringCondition) complies(f Fetcher) bool {
	comp, ok := f.GetString(c.key)
	if !ok {
		return false
	}

	switch c.operator {
	case SameAs:
		return c.value == comp
	case Contains:
		return strings.Contains(comp, c.value)
	case StartsWith:
		return strings.HasPrefix(comp, c.value)
	case EndsWith:
		return strings.HasSuffix(comp, c.value)
	default:
		return false
	}
}

func (c *stringCondition) check() error {
	return c.err
}

func (c *stringCondition) string() string {
	return fmt.Sprintf("%s %s %s", c.key, getOpName(c.operator), strconv.Quote(c.value))
}

type stringSliceCondition struct {
	key      string
	operator uint8
	value    []string
	err      error
}

func newStringSliceCondition(key string, operator uint8, value interface{}) *stringSliceCondition {
	c := &stringSliceCondition{
		key:      key,
		operator: operator,
	}

	switch v := value.(type) {
	case string:
		c.value = strings.Split(v, ",")
	case []string:
		c.value = v
	default:
		c.err = conditionError(key, "incompatible value %v for []string", value)
	}

	return c
}

func (c *stringSliceCondition) complies(f Fetcher) bool {
	comp, ok := f.GetString(c.key)
	if !ok {
		return false
	}
	return slices.Contains(c.value, comp)
}

func (c *stringSliceCondition) check() error {
	return c.err
}

func (c *stringSliceCondition) string() string {
	return fmt.Sprintf("%s %s %s", c.key, getOpName(c.operator), strconv.Quote(strings.Join(c.value, ",")))
}

type regexCondition struct {
	key      string
	operator uint8
	regex    *regexp.Regexp
	err      error
}

func newRegexCondition(key string, operator uint8, value interface{}) *regexCondition {
	c := &regexCondition{
		key:      key,
		operator: operator,
	}

	switch v := value.(type) {
	case string:
		r, err := regexp.Compile(v)
		if err != nil {
			c.err = conditionError(key, "invalid regex %q: %s", v, err)
		}
		c.regex = r
	case *regexp.Regexp:
		c.regex = v
	default:
		c.err = conditionError(key, "incompatible value %v for regex", value)
	}

	return c
}

func (c *regexCondition) complies(f Fetcher) bool {
	comp, ok := f.GetString(c.key)
	if !ok {
		return false
	}
	return c.regex.MatchString(comp)
}

func (c *regexCondition) check() error {
	return c.err
}

func (c *regexCondition) string() string {
	var expr string
	if c.regex != nil {
		expr = c.regex.String()
	}
	return fmt.Sprintf("%s %s %s", c.key, getOpName(c.operator), strconv.Quote(expr))
}
