package query

import (
	"github.com/tidwall/gjson"
)

// Fetcher supplies the values a condition is checked against.
type Fetcher interface {
	GetString(key string) (value string, ok bool)
	GetInt(key string) (value int64, ok bool)
	GetFloat(key string) (value float64, ok bool)
	GetBool(key string) (value bool, ok bool)
	Exists(key string) bool
}

// JSONFetcher fetches values from a JSON document using gjson paths.
type JSONFetcher struct {
	json string
}

// NewJSONFetcher adds the Fetcher interface to a JSON string.
func NewJSONFetcher(json string) *JSONFetcher {
	return &JSONFetcher{
		json: json,
	}
}

// NewJSONBytesFetcher adds the Fetcher interface to a JSON document.
func NewJSONBytesFetcher(json []byte) *JSONFetcher {
	return &JSONFetcher{
		json: string(json),
	}
}

// Get returns the raw gjson result for the given key.
func (jf *JSONFetcher) Get(key string) gjson.Result {
	return gjson.Get(jf.json, key)
}

// GetString returns the string found by the given json key and whether it could be successfully extracted.
func (jf *JSONFetcher) GetString(key string) (value string, ok bool) {
	result := jf.Get(key)
	if result.Type != gjson.String {
		return "", false
	}
	return result.Str, true
}

// GetInt returns the int found by the given json key and whether it could be successfully extracted.
func (jf *JSONFetcher) GetInt(key string) (value int64, ok bool) {
	result := jf.Get(key)
	if result.Type != gjson.Number {
		return 0, false
	}
	return result.Int(), true
}

// GetFloat returns the float found by the given json key and whether it could be successfully extracted.
func (jf *JSONFetcher) GetFloat(key string) (value float64, ok bool) {
	result := jf.Get(key)
	if result.Type != gjson.Number {
		return 0, false
	}
	return result.Num, true
}

// GetBool returns the bool found by the given json key and whether it could be successfully extracted.
func (jf *JSONFetcher) GetBool(key string) (value bool, ok bool) {
	switch jf.Get(key).Type {
	case gjson.True:
		return true, true
	case gjson.False:
		return false, true
	default:
		return false, false
	}
}

// Exists returns the whether the given key exists.
func (jf *JSONFetcher) Exists(key string) bool {
	return jf.Get(key).Exists()
}
