package database

// Reader is implemented by Context and Driver. Both can be passed to the
// read functions.
type Reader interface {
	readContext() *Context
}

func (c *Context) readContext() *Context {
	return c
}

// CreateObject creates a new record of type T. The record is written when
// the write bracket commits; records implementing Sequencer get their key
// right away.
func CreateObject[T any, PT RecordPtr[T]](c *Context) PT {
	r := PT(new(T))
	c.create(TypeOf[T, PT](), r)
	return r
}

// Objects returns all records of type T matching the options.
func Objects[T any, PT RecordPtr[T]](r Reader, opts *Options) []PT {
	records := r.readContext().records(TypeOf[T, PT](), opts)

	objects := make([]PT, 0, len(records))
	for _, record := range records {
		objects = append(objects, record.(PT)) //nolint:forcetypeassert
	}
	return objects
}

// Object returns the record of type T with the given primary key.
func Object[T any, PT RecordPtr[T]](r Reader, primaryKey interface{}) (PT, bool) {
	record, ok := r.readContext().lookup(TypeOf[T, PT](), FormatKey(primaryKey))
	if !ok {
		return nil, false
	}
	return record.(PT), true //nolint:forcetypeassert
}

// ObjectByMainKey returns the first record of type T, in primary key order,
// whose field key.Key equals key.Value.
func ObjectByMainKey[T any, PT RecordPtr[T], V comparable](r Reader, key MainKey[V]) (PT, bool) {
	record, ok := r.readContext().lookupMainKey(TypeOf[T, PT](), key.Key, key.Value)
	if !ok {
		return nil, false
	}
	return record.(PT), true //nolint:forcetypeassert
}
