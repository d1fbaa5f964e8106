package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJSON = `{"age":100, "name":{"here":"B\\\"R"},
  "happy":true,"immortal":false,
  "items":[1,2,3,{"tags":[1,2,3],"points":[[1,2],[3,4]]},4,5,6,7],
  "created":"2014-05-16T08:28:06.989Z",
  "agents": [
    {"name": "Brett", "status": "active", "runs": 3},
    {"name": "Jason", "status": "idle", "runs": 0}
  ],
  "lastly":{"yay":"final"},
  "temperature": 120.413
}`

func testCondition(t *testing.T, f Fetcher, shouldMatch bool, condition Condition) {
	t.Helper()

	MustBeValid(condition)
	matched := Complies(condition, f)
	switch {
	case !matched && shouldMatch:
		t.Errorf("should match: %s", Print(condition))
	case matched && !shouldMatch:
		t.Errorf("should not match: %s", Print(condition))
	}
}

func TestConditions(t *testing.T) {
	t.Parallel()

	f := NewJSONFetcher(testJSON)

	testCondition(t, f, true, Where("age", Equals, 100))
	testCondition(t, f, true, Where("age", GreaterThan, uint8(99)))
	testCondition(t, f, true, Where("age", GreaterThanOrEqual, 99))
	testCondition(t, f, true, Where("age", GreaterThanOrEqual, 100))
	testCondition(t, f, true, Where("age", LessThan, 101))
	testCondition(t, f, true, Where("age", LessThanOrEqual, "101"))
	testCondition(t, f, true, Where("age", LessThanOrEqual, 100))
	testCondition(t, f, false, Where("age", LessThan, 100))
	testCondition(t, f, false, Where("missing", Equals, 0))

	testCondition(t, f, true, Where("temperature", FloatEquals, 120.413))
	testCondition(t, f, true, Where("temperature", FloatGreaterThan, 120))
	testCondition(t, f, true, Where("temperature", FloatGreaterThanOrEqual, 120.413))
	testCondition(t, f, true, Where("temperature", FloatLessThan, 121))
	testCondition(t, f, true, Where("temperature", FloatLessThanOrEqual, "120.413"))

	testCondition(t, f, true, Where("lastly.yay", SameAs, "final"))
	testCondition(t, f, true, Where("lastly.yay", Contains, "ina"))
	testCondition(t, f, true, Where("lastly.yay", StartsWith, "fin"))
	testCondition(t, f, true, Where("lastly.yay", EndsWith, "nal"))
	testCondition(t, f, true, Where("lastly.yay", In, "draft,final"))
	testCondition(t, f, true, Where("lastly.yay", In, []string{"final"}))
	testCondition(t, f, false, Where("lastly.yay", In, "draft,other"))
	testCondition(t, f, false, Where("age", SameAs, "100"))

	testCondition(t, f, true, Where("happy", Is, true))
	testCondition(t, f, true, Where("happy", Is, "true"))
	testCondition(t, f, true, Where("happy", Is, "t"))
	testCondition(t, f, true, Not(Where("happy", Is, "0")))
	testCondition(t, f, true, And(
		Where("happy", Is, "1"),
		Not(Or(
			Where("happy", Is, false),
			Where("immortal", Is, true),
		)),
	))

	testCondition(t, f, true, Where("happy", Exists, nil))
	testCondition(t, f, false, Where("sad", Exists, nil))
	testCondition(t, f, true, Where("agents.#(status==\"active\").name", SameAs, "Brett"))

	testCondition(t, f, true, Where("created", Matches, "^2014-[0-9]{2}-[0-9]{2}T"))
	testCondition(t, f, true, Everything())
	testCondition(t, f, true, nil)
}

func TestInvalidConditions(t *testing.T) {
	t.Parallel()

	for _, cond := range []Condition{
		Where("age", Equals, struct{}{}),
		Where("temperature", FloatEquals, "warm"),
		Where("happy", Is, "maybe"),
		Where("created", Matches, "[0-9"),
		Where("age", 200, 1),
		And(),
		And(Where("age", Equals, 1), Where("happy", Is, "perhaps")),
		Not(Where("happy", Is, 3)),
	} {
		if Check(cond) == nil {
			t.Errorf("condition should be invalid: %s", Print(cond))
		}
	}
}

func TestEqualsWithText(t *testing.T) {
	t.Parallel()

	f := NewJSONFetcher(testJSON)

	testCondition(t, f, true, Where("lastly.yay", Equals, "final"))
	testCondition(t, f, false, Where("lastly.yay", Equals, "draft"))
	testCondition(t, f, true, Where("agents.0.status", Equals, "active"))
	testCondition(t, f, true, Where("age", Equals, "100"))
	testCondition(t, f, false, Where("age", Equals, "abc"))

	parsed, err := ParseCondition(`agents.0.status == active`)
	require.NoError(t, err)
	assert.Equal(t, Print(Where("agents.0.status", Equals, "active")), Print(parsed))
	assert.True(t, Complies(parsed, f))
}

func TestConditionErrors(t *testing.T) {
	t.Parallel()

	err := Check(Where("age", 200, 1))
	var opErr UnsupportedOperatorError
	require.True(t, errors.As(err, &opErr), "%s", err)
	assert.Equal(t, UnsupportedOperatorError(200), opErr)

	err = Check(Where("happy", Is, "maybe"))
	var condErr *ConditionError
	require.True(t, errors.As(err, &condErr), "%s", err)
	assert.Equal(t, "happy", condErr.Key)

	err = Check(And())
	require.True(t, errors.As(err, &condErr), "%s", err)
	assert.Empty(t, condErr.Key)
}
