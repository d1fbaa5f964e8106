package database

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/tidwall/gjson"
	"golang.org/x/exp/slices"

	"github.com/safing/dbdriver/database/query"
	"github.com/safing/dbdriver/database/storage"
	"github.com/safing/dbdriver/formats/dsd"
	"github.com/safing/dbdriver/log"
)

var errStopIteration = errors.New("stop iteration")

// Context is a view of the store. Outside of a write bracket it reads from
// a snapshot that is kept until the view is refreshed. Inside a write bracket
// it reads through the write transaction and keeps every record it hands
// out, so that repeated lookups return the same instance and changes made to
// these instances are written when the bracket commits.
//
// A Context must only be used by one goroutine at a time.
type Context struct {
	ctrl *controller

	snapshot storage.Snapshot
	txn      storage.Txn

	hasChanges bool
	live       map[Record]*tracked
	identity   map[string]*tracked
	changes    *changeSet
	errs       *multierror.Error

	values map[int]int
}

type tracked struct {
	rec Record
	rt  *RecordType
	key string
	// data is the serialized record as last written or read.
	data  []byte
	dirty bool
}

type entry struct {
	key  string
	data []byte
}

func newContext(ctrl *controller) *Context {
	return &Context{ctrl: ctrl}
}

func identityKey(rt *RecordType, key string) string {
	return rt.name + "/" + key
}

// HasChanges returns whether records were created or added in the current
// write bracket.
func (c *Context) HasChanges() bool {
	return c.hasChanges
}

func (c *Context) mustBeInBracket() {
	if c.txn == nil {
		panic(ErrNotInWriteBracket)
	}
}

func (c *Context) view() storage.Snapshot {
	if c.txn != nil {
		c.flush(false)
		return c.txn
	}

	if c.snapshot == nil {
		snap, err := c.ctrl.storage.Snapshot()
		if err != nil {
			log.Errorf("database: failed to get snapshot of %s: %s", c.ctrl.location, err)
			return nil
		}
		c.snapshot = snap
	}
	return c.snapshot
}

func (c *Context) releaseSnapshot() {
	if c.snapshot != nil {
		c.snapshot.Release()
		c.snapshot = nil
	}
}

func (c *Context) refresh() {
	if c.txn == nil {
		c.releaseSnapshot()
	}
}

func (c *Context) decode(rt *RecordType, data []byte) (Record, error) {
	r := rt.New()
	if _, err := dsd.Load(data, r); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", rt.name, err)
	}
	return r, nil
}

// jsonOf returns the JSON representation of a serialized record.
func (c *Context) jsonOf(rt *RecordType, data []byte) ([]byte, error) {
	format, payload, err := dsd.Payload(data)
	if err != nil {
		return nil, err
	}
	if format == dsd.JSON {
		return payload, nil
	}

	r, err := c.decode(rt, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

func (c *Context) lookup(rt *RecordType, key string) (Record, bool) {
	if key == "" {
		return nil, false
	}
	snap := c.view()
	if snap == nil {
		return nil, false
	}
	if c.txn != nil {
		if t, ok := c.identity[identityKey(rt, key)]; ok {
			return t.rec, true
		}
	}

	data, err := snap.Get(rt.name, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warningf("database: failed to get %s/%s: %s", rt.name, key, err)
		}
		return nil, false
	}
	return c.materialize(rt, entry{key: key, data: data})
}

func (c *Context) lookupMainKey(rt *RecordType, field string, value interface{}) (Record, bool) {
	snap := c.view()
	if snap == nil {
		return nil, false
	}

	var found string
	err := snap.ForEach(rt.name, func(key string, data []byte) error {
		js, err := c.jsonOf(rt, data)
		if err != nil {
			log.Warningf("database: skipping %s/%s: %s", rt.name, key, err)
			return nil
		}
		if query.ValueEquals(gjson.GetBytes(js, field), value) {
			found = key
			return errStopIteration
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		log.Warningf("database: failed to iterate %s: %s", rt.name, err)
		return nil, false
	}
	if found == "" {
		return nil, false
	}
	return c.lookup(rt, found)
}

func (c *Context) materialize(rt *RecordType, e entry) (Record, bool) {
	if c.txn != nil {
		if t, ok := c.identity[identityKey(rt, e.key)]; ok {
			return t.rec, true
		}
	}

	r, err := c.decode(rt, e.data)
	if err != nil {
		log.Warningf("database: skipping %s/%s: %s", rt.name, e.key, err)
		return nil, false
	}

	if c.txn != nil {
		t := &tracked{
			rec:  r,
			rt:   rt,
			key:  e.key,
			data: e.data,
		}
		c.live[r] = t
		c.identity[identityKey(rt, e.key)] = t
	}
	return r, true
}

// selectEntries returns the stored entries of a type that match the filter,
// sorted as requested.
func (c *Context) selectEntries(rt *RecordType, opts *Options) []entry {
	if opts == nil {
		opts = &Options{}
	}
	if err := query.Check(opts.Filter); err != nil {
		log.Errorf("database: invalid filter for %s: %s", rt.name, err)
		return nil
	}

	snap := c.view()
	if snap == nil {
		return nil
	}

	needJSON := opts.Filter != nil || len(opts.SortBy) > 0
	var (
		entries []entry
		values  [][]gjson.Result
	)
	err := snap.ForEach(rt.name, func(key string, data []byte) error {
		if !needJSON {
			entries = append(entries, entry{key: key, data: slices.Clone(data)})
			return nil
		}

		js, err := c.jsonOf(rt, data)
		if err != nil {
			log.Warningf("database: skipping %s/%s: %s", rt.name, key, err)
			return nil
		}
		if !query.Complies(opts.Filter, query.NewJSONBytesFetcher(js)) {
			return nil
		}

		entries = append(entries, entry{key: key, data: slices.Clone(data)})
		if len(opts.SortBy) > 0 {
			sortValues := make([]gjson.Result, len(opts.SortBy))
			for i, sortKey := range opts.SortBy {
				sortValues[i] = gjson.GetBytes(js, sortKey.KeyPath)
			}
			values = append(values, sortValues)
		}
		return nil
	})
	if err != nil {
		log.Warningf("database: failed to iterate %s: %s", rt.name, err)
		return nil
	}

	if len(opts.SortBy) > 0 {
		order := make([]int, len(entries))
		for i := range order {
			order[i] = i
		}
		slices.SortStableFunc(order, func(a, b int) int {
			for i, sortKey := range opts.SortBy {
				result := query.Compare(values[a][i], values[b][i])
				if result == 0 {
					continue
				}
				if !sortKey.Ascending {
					return -result
				}
				return result
			}
			return 0
		})

		sorted := make([]entry, len(entries))
		for i, idx := range order {
			sorted[i] = entries[idx]
		}
		entries = sorted
	}

	return entries
}

func (c *Context) records(rt *RecordType, opts *Options) []Record {
	entries := c.selectEntries(rt, opts)
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		if r, ok := c.materialize(rt, e); ok {
			records = append(records, r)
		}
	}
	return records
}

func (c *Context) create(rt *RecordType, r Record) Record {
	c.mustBeInBracket()
	c.hasChanges = true

	if _, ok := c.live[r]; ok {
		return r
	}

	if s, ok := r.(Sequencer); ok && r.PrimaryKey() == "" {
		seq, err := c.txn.NextSequence(rt.name)
		if err != nil {
			c.errs = multierror.Append(c.errs, fmt.Errorf("failed to assign key to %s: %w", rt.name, err))
		} else {
			s.AssignSequence(seq)
		}
	}

	t := &tracked{
		rec: r,
		rt:  rt,
	}
	c.live[r] = t
	if key := r.PrimaryKey(); key != "" {
		c.register(t, key)
	}
	return r
}

// register makes t the instance for key. It replaces an instance tracked
// before for the same key.
func (c *Context) register(t *tracked, key string) {
	id := identityKey(t.rt, key)
	if old, ok := c.identity[id]; ok && old != t {
		delete(c.live, old.rec)
		t.data = old.data
	} else if data, err := c.txn.Get(t.rt.name, key); err == nil {
		t.data = data
	}

	t.key = key
	c.identity[id] = t
}

// flush writes all tracked records that changed. Errors are only recorded
// for the final flush at commit.
func (c *Context) flush(final bool) {
	fail := func(err error) {
		if final {
			c.errs = multierror.Append(c.errs, err)
		}
	}

	for _, t := range c.live {
		key := t.rec.PrimaryKey()
		switch {
		case key == "":
			fail(fmt.Errorf("%w: %s", ErrMissingPrimaryKey, t.rt.name))
			continue
		case t.key == "":
			c.register(t, key)
		case t.key != key:
			fail(fmt.Errorf("%w: %s/%s is now %s", ErrPrimaryKeyChanged, t.rt.name, t.key, key))
			continue
		}

		data, err := dsd.Dump(t.rec, c.ctrl.format)
		if err != nil {
			fail(fmt.Errorf("failed to serialize %s/%s: %w", t.rt.name, key, err))
			continue
		}
		if bytes.Equal(data, t.data) {
			continue
		}
		if err := c.txn.Put(t.rt.name, key, data); err != nil {
			fail(fmt.Errorf("failed to write %s/%s: %w", t.rt.name, key, err))
			continue
		}

		t.data = data
		t.dirty = true
		c.changes.add(t.rt.name, key)
	}
}

func (c *Context) checkUniqueFields() {
	for _, t := range c.live {
		unique, ok := t.rec.(UniqueFielder)
		if !ok || !t.dirty {
			continue
		}
		fields := unique.UniqueFields()

		err := c.txn.ForEach(t.rt.name, func(key string, data []byte) error {
			if key == t.key {
				return nil
			}
			js, err := c.jsonOf(t.rt, data)
			if err != nil {
				return nil //nolint:nilerr // Undecodable records cannot collide.
			}
			for path, value := range fields {
				if query.ValueEquals(gjson.GetBytes(js, path), value) {
					return fmt.Errorf("%w: %s %s=%v is already used by %s", ErrDuplicateValue, t.rt.name, path, value, key)
				}
			}
			return nil
		})
		if err != nil {
			c.errs = multierror.Append(c.errs, err)
		}
	}
}

// Add stores the given records. Records that are already stored are
// overwritten.
func (c *Context) Add(records ...Record) {
	c.mustBeInBracket()

	for _, r := range records {
		c.create(typeOfRecord(r), r)
	}
}

// SimpleRemove removes the given records without their dependents. It
// returns whether all removals were accepted.
func (c *Context) SimpleRemove(records ...Record) bool {
	c.mustBeInBracket()

	accepted := true
	for _, r := range records {
		rt := typeOfRecord(r)
		key := r.PrimaryKey()
		if t, ok := c.live[r]; ok {
			delete(c.live, r)
			if t.key != "" {
				key = t.key
			}
		}
		if key == "" {
			accepted = false
			continue
		}

		id := identityKey(rt, key)
		if t, ok := c.identity[id]; ok {
			delete(c.live, t.rec)
			delete(c.identity, id)
		}

		if err := c.txn.Delete(rt.name, key); err != nil {
			c.errs = multierror.Append(c.errs, fmt.Errorf("failed to delete %s: %w", id, err))
			accepted = false
			continue
		}
		c.changes.remove(rt.name, key)
	}
	return accepted
}

// CustomRemove deletes the given records with their own delete policy:
// RecursiveDelete if recursive is set, SimpleDelete otherwise.
func (c *Context) CustomRemove(records []Record, recursive bool) {
	c.mustBeInBracket()

	for _, r := range records {
		if recursive {
			RecursiveDelete(c, r)
		} else {
			SimpleDelete(c, r)
		}
	}
}

// RemoveAll deletes every record of every type.
func (c *Context) RemoveAll() bool {
	c.mustBeInBracket()

	if err := c.txn.DeleteAll(); err != nil {
		c.errs = multierror.Append(c.errs, fmt.Errorf("failed to delete all records: %w", err))
		return false
	}
	c.live = make(map[Record]*tracked)
	c.identity = make(map[string]*tracked)
	c.changes.removeAll()

	if err := c.ctrl.writeSchema(c.txn); err != nil {
		c.errs = multierror.Append(c.errs, err)
		return false
	}
	return true
}

// SetValue sets a scratch value. Scratch values are not persisted.
func (c *Context) SetValue(value, key int) {
	if c.values == nil {
		c.values = make(map[int]int)
	}
	c.values[key] = value
}

// ValueForKey returns a scratch value.
func (c *Context) ValueForKey(key int) (value int, ok bool) {
	value, ok = c.values[key]
	return
}

func (c *Context) beginChanges() error {
	if c.txn != nil {
		panic(ErrNestedBracket)
	}

	c.releaseSnapshot()
	txn, err := c.ctrl.storage.Begin()
	if err != nil {
		return fmt.Errorf("database: failed to begin write transaction: %w", err)
	}

	c.txn = txn
	c.hasChanges = false
	c.live = make(map[Record]*tracked)
	c.identity = make(map[string]*tracked)
	c.changes = newChangeSet()
	c.errs = nil
	return nil
}

func (c *Context) commitChanges() error {
	c.flush(true)
	c.checkUniqueFields()
	if err := c.errs.ErrorOrNil(); err != nil {
		c.rollbackChanges()
		return err
	}

	changes := c.changes
	err := c.txn.Commit()
	c.endBracket()
	if err != nil {
		rollbacksTotal.Inc()
		return fmt.Errorf("database: failed to commit: %w", err)
	}

	commitsTotal.Inc()
	c.ctrl.notify(changes)
	return nil
}

func (c *Context) rollbackChanges() {
	if c.txn == nil {
		return
	}

	c.txn.Release()
	c.endBracket()
	rollbacksTotal.Inc()
}

func (c *Context) endBracket() {
	c.txn = nil
	c.hasChanges = false
	c.live = nil
	c.identity = nil
	c.changes = nil
	c.errs = nil
}
