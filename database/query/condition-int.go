package query

import (
	"fmt"
	"strconv"
)

type intCondition struct {
	key      string
	operator uint8
	value    int64
	err      error
}

func newIntCondition(key string, operator uint8, value interface{}) *intCondition {
	c := &intCondition{
		key:      key,
		operator: operator,
	}

	switch v := value.(type) {
	case int:
		c.value = int64(v)
	case int8:
		c.value = int64(v)
	case int16:
		c.value = int64(v)
	case int32:
		c.value = int64(v)
	case int64:
		c.value = v
	case uint:
		c.value = int64(v)
	case uint8:
		c.value = int64(v)
	case uint16:
		c.value = int64(v)
	case uint32:
		c.value = int64(v)
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.err = conditionError(key, "could not parse %q to int", v)
		}
		c.value = parsed
	default:
		c.err = conditionError(key, "incompatible value %v for int64", value)
	}

	return c
}

func (c *intCondition) complies(f Fetcher) bool {
	comp, ok := f.GetInt(c.key)
	if !ok {
		return false
	}

	switch c.operator {
	case Equals:
		return comp == c.value
	case GreaterThan:
		return comp > c.value
	case GreaterThanOrEqual:
		return comp >= c.value
	case LessThan:
		return comp < c.value
	case LessThanOrEqual:
		return comp <= c.value
	default:
		return false
	}
}

func (c *intCondition) check() error {
	return c.err
}

func (c *intCondition) string() string {
	return fmt.Sprintf("%s %s %d", c.key, getOpName(c.operator), c.value)
}
