package database

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Record is a persistable entity. The primary key identifies the record
// within its type.
type Record interface {
	PrimaryKey() string
}

// RecordPtr constrains type parameters to pointers of record structs.
type RecordPtr[T any] interface {
	*T
	Record
}

// Sequencer is implemented by records whose primary key is assigned by the
// storage engine. Records with an empty primary key get the next sequence
// number of their type when they are created or added.
type Sequencer interface {
	Record
	AssignSequence(seq uint64)
}

// TypeNamer overrides the name records are stored under. By default the
// name of the struct type is used.
type TypeNamer interface {
	TypeName() string
}

// Merger is implemented by records that accept changes.
type Merger interface {
	Apply(c *Context, change Change)
}

// SimpleDeleter overrides how a record removes itself.
type SimpleDeleter interface {
	SimpleDelete(c *Context)
}

// RecursiveDeleter is implemented by records that own other records. The
// implementation deletes all dependents and then the record itself.
type RecursiveDeleter interface {
	RecursiveDelete(c *Context)
}

// UniqueFielder is implemented by records with main keys that must be unique
// within their type. The map keys are JSON paths, the values are the current
// values of the fields. Uniqueness is checked when a write bracket commits.
type UniqueFielder interface {
	UniqueFields() map[string]interface{}
}

// SimpleDelete removes r without its dependents.
func SimpleDelete(c *Context, r Record) {
	if deleter, ok := r.(SimpleDeleter); ok {
		deleter.SimpleDelete(c)
		return
	}
	c.SimpleRemove(r)
}

// RecursiveDelete removes r and everything it owns. Records without an
// own policy are deleted with SimpleDelete.
func RecursiveDelete(c *Context, r Record) {
	if deleter, ok := r.(RecursiveDeleter); ok {
		deleter.RecursiveDelete(c)
		return
	}
	SimpleDelete(c, r)
}

// FormatKey formats a primary key value. Integers are formatted in decimal.
func FormatKey(key interface{}) string {
	switch v := key.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		panic(fmt.Sprintf("database: unsupported primary key type %T", key))
	}
}

// RecordType describes a stored record type.
type RecordType struct {
	name string
	elem reflect.Type
}

var recordTypes sync.Map // reflect.Type -> *RecordType

// TypeOf returns the record type of PT.
func TypeOf[T any, PT RecordPtr[T]]() *RecordType {
	return typeOfRecord(PT(new(T)))
}

func typeOfRecord(r Record) *RecordType {
	t := reflect.TypeOf(r)
	if rt, ok := recordTypes.Load(t); ok {
		return rt.(*RecordType) //nolint:forcetypeassert
	}

	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		panic(fmt.Errorf("%w: got %T", ErrInvalidRecordType, r))
	}

	name := t.Elem().Name()
	if namer, ok := reflect.New(t.Elem()).Interface().(TypeNamer); ok {
		name = namer.TypeName()
	}
	if name == "" || strings.Contains(name, "/") || strings.HasPrefix(name, "_") {
		panic(fmt.Errorf("%w: %q", ErrInvalidTypeName, name))
	}

	rt, _ := recordTypes.LoadOrStore(t, &RecordType{
		name: name,
		elem: t.Elem(),
	})
	return rt.(*RecordType) //nolint:forcetypeassert
}

// Name returns the name records of this type are stored under.
func (rt *RecordType) Name() string {
	return rt.name
}

// New returns a new, empty record of this type.
func (rt *RecordType) New() Record {
	return reflect.New(rt.elem).Interface().(Record) //nolint:forcetypeassert
}

func (rt *RecordType) String() string {
	return rt.name
}
