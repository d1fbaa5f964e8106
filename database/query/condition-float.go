package query

import (
	"fmt"
	"strconv"
)

type floatCondition struct {
	key      string
	operator uint8
	value    float64
	err      error
}

func newFloatCondition(key string, operator uint8, value interface{}) *floatCondition {
	c := &floatCondition{
		key:      key,
		operator: operator,
	}

	switch v := value.(type) {
	case float32:
		c.value = float64(v)
	case float64:
		c.value = v
	case int:
		c.value = float64(v)
	case int32:
		c.value = float64(v)
	case int64:
		c.value = float64(v)
	case uint32:
		c.value = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.err = conditionError(key, "could not parse %q to float", v)
		}
		c.value = parsed
	default:
		c.err = conditionError(key, "incompatible value %v for float64", value)
	}

	return c
}

func (c *floatCondition) complies(f Fetcher) bool {
	comp, ok := f.GetFloat(c.key)
	if !ok {
		return false
	}

	switch c.operator {
	case FloatEquals:
		return comp == c.value
	case FloatGreaterThan:
		return comp > c.value
	case FloatGreaterThanOrEqual:
		return comp >= c.value
	case FloatLessThan:
		return comp < c.value
	case FloatLessThanOrEqual:
		return comp <= c.value
	default:
		return false
	}
}

func (c *floatCondition) check() error {
	return c.err
}

func (c *floatCondition) string() string {
	return fmt.Sprintf("%s %s %s", c.key, getOpName(c.operator), strconv.FormatFloat(c.value, 'g', -1, 64))
}
