package query

import (
	"fmt"
	"strings"
)

// And combines multiple conditions with a logical _AND_ operator.
func And(conditions ...Condition) Condition {
	return &andCond{
		conditions: conditions,
	}
}

// Or combines multiple conditions with a logical _OR_ operator.
func Or(conditions ...Condition) Condition {
	return &orCond{
		conditions: conditions,
	}
}

// Not negates the supplied condition.
func Not(c Condition) Condition {
	return &notCond{
		notC: c,
	}
}

// Everything returns a condition that matches every object.
func Everything() Condition {
	return &noCond{}
}

type andCond struct {
	conditions []Condition
}

func (c *andCond) complies(f Fetcher) bool {
	for _, cond := range c.conditions {
		if !cond.complies(f) {
			return false
		}
	}
	return true
}

func (c *andCond) check() error {
	return checkAll(c.conditions)
}

func (c *andCond) string() string {
	return joinConditions(c.conditions, " and ")
}

type orCond struct {
	conditions []Condition
}

func (c *orCond) complies(f Fetcher) bool {
	for _, cond := range c.conditions {
		if cond.complies(f) {
			return true
		}
	}
	return false
}

func (c *orCond) check() error {
	return checkAll(c.conditions)
}

func (c *orCond) string() string {
	return joinConditions(c.conditions, " or ")
}

type notCond struct {
	notC Condition
}

func (c *notCond) complies(f Fetcher) bool {
	return !c.notC.complies(f)
}

func (c *notCond) check() error {
	if c.notC == nil {
		return &ConditionError{Reason: "not without condition"}
	}
	return c.notC.check()
}

func (c *notCond) string() string {
	return "not " + c.notC.string()
}

type noCond struct{}

func (c *noCond) complies(Fetcher) bool { return true }
func (c *noCond) check() error         { return nil }
func (c *noCond) string() string       { return "" }

type errorCondition struct {
	err error
}

func newErrorCondition(err error) *errorCondition {
	return &errorCondition{
		err: err,
	}
}

func (c *errorCondition) complies(Fetcher) bool { return false }
func (c *errorCondition) check() error         { return c.err }
func (c *errorCondition) string() string       { return "[ERROR]" }

func checkAll(conditions []Condition) error {
	if len(conditions) == 0 {
		return &ConditionError{Reason: "empty and/or group"}
	}
	for _, cond := range conditions {
		if cond == nil {
			return &ConditionError{Reason: "nil condition in and/or group"}
		}
		if err := cond.check(); err != nil {
			return err
		}
	}
	return nil
}

func joinConditions(conditions []Condition, sep string) string {
	all := make([]string, 0, len(conditions))
	for _, cond := range conditions {
		all = append(all, cond.string())
	}
	return fmt.Sprintf("(%s)", strings.Join(all, sep))
}
