package database

import (
	"github.com/tidwall/gjson"
)

// Change describes one inbound change to a record type. Concrete changes
// embed ChangeBase and implement TargetType and PrimaryValue.
type Change interface {
	// IsOK reports the acknowledgement flag of the payload.
	IsOK() bool
	// IsValid reports whether all fields the change requires are present.
	// Invalid changes are never applied.
	IsValid() bool
	// TargetType is the record type the change applies to.
	TargetType() *RecordType
	// PrimaryValue is the primary key the change refers to.
	PrimaryValue() int
	// IntegerKey and StringKey locate the record to merge into. At most
	// one of them is set.
	IntegerKey() *MainKey[int]
	StringKey() *MainKey[string]
}

// MainKey is a named field with the value a record is looked up by.
type MainKey[V comparable] struct {
	Key   string
	Value V
}

// ChangeBase supplies the defaults of Change.
type ChangeBase struct {
	ok bool
}

// NewChangeBase reads the acknowledgement flag from the "ok" field of the
// payload.
func NewChangeBase(payload gjson.Result) ChangeBase {
	return ChangeBase{
		ok: payload.Get("ok").Bool(),
	}
}

// LocalChangeBase returns the base for changes created by the application
// itself.
func LocalChangeBase() ChangeBase {
	return ChangeBase{ok: true}
}

// IsOK reports the acknowledgement flag of the payload.
func (cb ChangeBase) IsOK() bool {
	return cb.ok
}

// IsValid returns true.
func (cb ChangeBase) IsValid() bool {
	return true
}

// IntegerKey returns nil.
func (cb ChangeBase) IntegerKey() *MainKey[int] {
	return nil
}

// StringKey returns nil.
func (cb ChangeBase) StringKey() *MainKey[string] {
	return nil
}

// Merge applies change to the record it refers to. The record is looked up
// by the integer key, the string key or the primary value, in this order.
// It returns false for invalid changes and if no record matches; the caller
// decides whether to create one.
func Merge(c *Context, change Change) (Record, bool) {
	if !change.IsValid() {
		return nil, false
	}
	c.mustBeInBracket()

	rt := change.TargetType()
	var (
		r  Record
		ok bool
	)
	switch {
	case change.IntegerKey() != nil:
		key := change.IntegerKey()
		r, ok = c.lookupMainKey(rt, key.Key, key.Value)
	case change.StringKey() != nil:
		key := change.StringKey()
		r, ok = c.lookupMainKey(rt, key.Key, key.Value)
	default:
		r, ok = c.lookup(rt, FormatKey(change.PrimaryValue()))
	}
	if !ok {
		return nil, false
	}

	if merger, ok := r.(Merger); ok {
		merger.Apply(c, change)
	}
	return r, true
}

// Upsert merges change into its record, or creates a new record and applies
// the change to it. It returns nil for invalid changes.
func Upsert(c *Context, change Change) Record {
	if !change.IsValid() {
		return nil
	}
	if r, ok := Merge(c, change); ok {
		return r
	}

	r := c.create(change.TargetType(), change.TargetType().New())
	if merger, ok := r.(Merger); ok {
		merger.Apply(c, change)
	}
	return r
}
