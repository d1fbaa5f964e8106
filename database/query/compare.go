package query

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Values of different kinds sort in this order.
func typeRank(r gjson.Result) int {
	if !r.Exists() {
		return 0
	}
	switch r.Type {
	case gjson.Null:
		return 1
	case gjson.False:
		return 2
	case gjson.True:
		return 3
	case gjson.Number:
		return 4
	case gjson.String:
		return 5
	default:
		return 6
	}
}

// Compare orders two JSON values. Missing values sort first, followed by
// null, false, true, numbers, strings and finally objects and arrays.
// It returns -1, 0 or +1.
func Compare(a, b gjson.Result) int {
	rankA, rankB := typeRank(a), typeRank(b)
	switch {
	case rankA < rankB:
		return -1
	case rankA > rankB:
		return 1
	}

	switch a.Type {
	case gjson.Number:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	case gjson.String:
		return strings.Compare(a.Str, b.Str)
	case gjson.JSON:
		return strings.Compare(a.Raw, b.Raw)
	default:
		return 0
	}
}

// ValueEquals reports whether the JSON value r holds v.
func ValueEquals(r gjson.Result, v interface{}) bool {
	if !r.Exists() {
		return false
	}

	switch value := v.(type) {
	case string:
		return r.Type == gjson.String && r.Str == value
	case bool:
		return (r.Type == gjson.True && value) || (r.Type == gjson.False && !value)
	case int:
		return r.Type == gjson.Number && r.Int() == int64(value) && r.Num == float64(value)
	case int32:
		return r.Type == gjson.Number && r.Int() == int64(value) && r.Num == float64(value)
	case int64:
		return r.Type == gjson.Number && r.Int() == value
	case uint:
		return r.Type == gjson.Number && r.Uint() == uint64(value)
	case uint32:
		return r.Type == gjson.Number && r.Uint() == uint64(value)
	case uint64:
		return r.Type == gjson.Number && r.Uint() == value
	case float64:
		return r.Type == gjson.Number && r.Num == value
	case float32:
		return r.Type == gjson.Number && r.Num == float64(value)
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return Compare(r, gjson.ParseBytes(encoded)) == 0
}
