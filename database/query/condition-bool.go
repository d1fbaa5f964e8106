package query

import (
	"fmt"
	"strconv"
)

type boolCondition struct {
	key      string
	operator uint8
	value    bool
	err      error
}

func newBoolCondition(key string, operator uint8, value interface{}) *boolCondition {
	c := &boolCondition{
		key:      key,
		operator: operator,
	}

	switch v := value.(type) {
	case bool:
		c.value = v
	case string:
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			c.err = conditionError(key, "could not parse %q to bool", v)
		}
		c.value = parsed
	default:
		c.err = conditionError(key, "incompatible value %v for bool", value)
	}

	return c
}

func (c *boolCondition) complies(f Fetcher) bool {
	comp, ok := f.GetBool(c.key)
	if !ok {
		return false
	}
	return comp == c.value
}

func (c *boolCondition) check() error {
	return c.err
}

func (c *boolCondition) string() string {
	return fmt.Sprintf("%s %s %t", c.key, getOpName(c.operator), c.value)
}

type existsCondition struct {
	key      string
	operator uint8
}

func newExistsCondition(key string, operator uint8) *existsCondition {
	return &existsCondition{
		key:      key,
		operator: operator,
	}
}

func (c *existsCondition) complies(f Fetcher) bool {
	return f.Exists(c.key)
}

func (c *existsCondition) check() error {
	if c.key == "" {
		return &ConditionError{Reason: "exists without key"}
	}
	return nil
}

func (c *existsCondition) string() string {
	return fmt.Sprintf("%s %s", c.key, getOpName(c.operator))
}
