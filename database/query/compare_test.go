package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestCompare(t *testing.T) {
	t.Parallel()

	doc := `{"null":null,"f":false,"t":true,"one":1,"two":2.5,"a":"a","b":"b","obj":{"x":1}}`
	ordered := []string{"missing", "null", "f", "t", "one", "two", "a", "b", "obj"}

	for i, lower := range ordered {
		for j, higher := range ordered {
			got := Compare(gjson.Get(doc, lower), gjson.Get(doc, higher))
			switch {
			case i < j:
				assert.Equal(t, -1, got, "%s < %s", lower, higher)
			case i > j:
				assert.Equal(t, 1, got, "%s > %s", lower, higher)
			default:
				assert.Equal(t, 0, got, "%s == %s", lower, higher)
			}
		}
	}
}

func TestValueEquals(t *testing.T) {
	t.Parallel()

	doc := `{"id":7,"name":"seven","ok":true,"ratio":0.5,"tags":["a"]}`

	assert.True(t, ValueEquals(gjson.Get(doc, "id"), 7))
	assert.True(t, ValueEquals(gjson.Get(doc, "id"), int64(7)))
	assert.False(t, ValueEquals(gjson.Get(doc, "id"), "7"))
	assert.True(t, ValueEquals(gjson.Get(doc, "name"), "seven"))
	assert.False(t, ValueEquals(gjson.Get(doc, "name"), "eight"))
	assert.True(t, ValueEquals(gjson.Get(doc, "ok"), true))
	assert.True(t, ValueEquals(gjson.Get(doc, "ratio"), 0.5))
	assert.False(t, ValueEquals(gjson.Get(doc, "ratio"), 0))
	assert.True(t, ValueEquals(gjson.Get(doc, "tags"), []string{"a"}))
	assert.False(t, ValueEquals(gjson.Get(doc, "missing"), ""))
}
