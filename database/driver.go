package database

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/tevino/abool"

	"github.com/safing/dbdriver/database/storage"
	"github.com/safing/dbdriver/events"
	"github.com/safing/dbdriver/formats/dsd"
	"github.com/safing/dbdriver/log"
)

// Driver gives access to one storage location. It owns a Context and the
// subscriptions made through it.
//
// A Driver must only be used by one goroutine at a time. Use Parallel to get
// a Driver for another goroutine. Unsubscribe and Listener.Cancel may be
// called from any goroutine.
type Driver struct {
	cfg  Config
	ctrl *controller
	ctx  *Context

	subscribers     map[Token]*subscriber
	subscribersLock sync.Mutex

	closed *abool.AtomicBool
}

type subscriber struct {
	watch *watch
	hook  *events.Hook
}

// Open opens the configured storage location.
func Open(cfg Config) (*Driver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctrl, err := getController(cfg)
	if err != nil {
		return nil, err
	}
	return newDriver(cfg, ctrl), nil
}

// MustOpen opens the configured storage location and panics if that fails.
// There is no dataset to fall back to when the store cannot be opened.
func MustOpen(cfg Config) *Driver {
	d, err := Open(cfg)
	if err != nil {
		log.Criticalf("database: failed to open store: %s", err)
		log.Flush()
		panic(err)
	}
	return d
}

func newDriver(cfg Config, ctrl *controller) *Driver {
	return &Driver{
		cfg:         cfg,
		ctrl:        ctrl,
		ctx:         newContext(ctrl),
		subscribers: make(map[Token]*subscriber),
		closed:      abool.NewBool(false),
	}
}

func (d *Driver) readContext() *Context {
	return d.ctx
}

// Read runs fn with the Context of the Driver. The Context reads from the
// last refreshed snapshot.
func (d *Driver) Read(fn func(c *Context)) {
	fn(d.ctx)
}

// ReadWrite runs fn in a write bracket and commits the changes afterwards.
// If fn panics, the changes are rolled back before the panic continues.
// Failing commits are rolled back and return an error.
func (d *Driver) ReadWrite(fn func(c *Context)) error {
	if d.closed.IsSet() {
		return ErrDriverClosed
	}
	if err := d.ctx.beginChanges(); err != nil {
		return err
	}

	done := false
	defer func() {
		if !done {
			log.Warningf("database: rolling back write to %s after panic", d.ctrl.location)
			d.ctx.rollbackChanges()
		}
	}()

	fn(d.ctx)
	done = true

	if err := d.ctx.commitChanges(); err != nil {
		log.Errorf("database: failed to commit to %s: %s", d.ctrl.location, err)
		return err
	}
	return nil
}

// Add stores the given records in their own write bracket.
func (d *Driver) Add(records ...Record) error {
	return d.ReadWrite(func(c *Context) {
		c.Add(records...)
	})
}

// SimpleRemove removes the given records in their own write bracket. It
// returns whether the removal was committed.
func (d *Driver) SimpleRemove(records ...Record) bool {
	var accepted bool
	err := d.ReadWrite(func(c *Context) {
		accepted = c.SimpleRemove(records...)
	})
	return accepted && err == nil
}

// CustomRemove removes the given records with their delete policy in their
// own write bracket.
func (d *Driver) CustomRemove(records []Record, recursive bool) error {
	return d.ReadWrite(func(c *Context) {
		c.CustomRemove(records, recursive)
	})
}

// RemoveAll deletes every record in its own write bracket.
func (d *Driver) RemoveAll() error {
	return d.ReadWrite(func(c *Context) {
		c.RemoveAll()
	})
}

// Parallel returns a new Driver for the same location with its own Context
// and subscriptions.
func (d *Driver) Parallel() *Driver {
	d.ctrl.addRef()
	return newDriver(d.cfg, d.ctrl)
}

// Refresh makes the next read see the latest commit.
func (d *Driver) Refresh() *Driver {
	d.ctx.refresh()
	return d
}

// ReadRaw runs fn with a fresh snapshot of the underlying storage.
func (d *Driver) ReadRaw(fn func(snap storage.Snapshot) error) error {
	snap, err := d.ctrl.storage.Snapshot()
	if err != nil {
		return err
	}
	defer snap.Release()

	return fn(snap)
}

// Close cancels all subscriptions and releases the storage location. The
// last Driver of a location shuts the storage down.
func (d *Driver) Close() error {
	if !d.closed.SetToIf(false, true) {
		return nil
	}

	d.subscribersLock.Lock()
	tokens := make([]Token, 0, len(d.subscribers))
	for token := range d.subscribers {
		tokens = append(tokens, token)
	}
	d.subscribersLock.Unlock()

	for _, token := range tokens {
		d.Unsubscribe(token)
	}

	d.ctx.releaseSnapshot()
	return d.ctrl.release()
}

func (d *Driver) addSubscriber(token Token, w *watch, hook *events.Hook) {
	d.subscribersLock.Lock()
	defer d.subscribersLock.Unlock()

	d.subscribers[token] = &subscriber{
		watch: w,
		hook:  hook,
	}
	activeSubscriptions.Add(1)
	log.Tracef("database: added subscription %s", token)
}

func (d *Driver) hasSubscription(token Token) bool {
	d.subscribersLock.Lock()
	defer d.subscribersLock.Unlock()

	_, ok := d.subscribers[token]
	return ok
}

// Unsubscribe ends the subscription with the given token. Unknown tokens
// are ignored. A callback that is running is waited for, unless Unsubscribe
// is called from within it. No callback runs after Unsubscribe returned.
func (d *Driver) Unsubscribe(token Token) {
	d.subscribersLock.Lock()
	sub, ok := d.subscribers[token]
	if ok {
		delete(d.subscribers, token)
	}
	d.subscribersLock.Unlock()
	if !ok {
		return
	}

	if sub.hook != nil {
		sub.hook.Cancel()
	}
	sub.watch.cancel()
	activeSubscriptions.Add(-1)
	log.Tracef("database: removed subscription %s", token)
}

// Subscribe calls callback with all records of type T matching the options.
// The first call happens before Subscribe returns. Afterwards, callback is
// called whenever a commit of any Driver of the location changes the result,
// and whenever the notification of the options is triggered.
//
// Callbacks run on a goroutine of the subscription, one at a time and in
// commit order.
func Subscribe[T any, PT RecordPtr[T]](d *Driver, opts *Options, callback func([]PT)) *Listener {
	rt := TypeOf[T, PT]()
	if opts == nil {
		opts = &Options{}
	}
	token := newToken()

	var (
		w    *watch
		last []entry
	)
	w = newWatch(token, d.ctrl, []string{rt.name + "/"}, func(forced bool) bool {
		c := newContext(d.ctrl)
		defer c.releaseSnapshot()

		entries := c.selectEntries(rt, opts)
		if !forced && sameEntries(last, entries) {
			return false
		}
		last = entries

		objects := make([]PT, 0, len(entries))
		for _, e := range entries {
			if r, ok := c.materialize(rt, e); ok {
				objects = append(objects, r.(PT)) //nolint:forcetypeassert
			}
		}
		w.deliver(func() {
			callback(objects)
		})
		return false
	})

	var hook *events.Hook
	if opts.NotificationName != "" {
		hook = d.cfg.Events.RegisterHook(opts.NotificationName, "refresh subscription "+token.String(), func(interface{}) {
			w.force()
		})
	}

	d.addSubscriber(token, w, hook)
	w.register()
	w.evaluate(true)
	w.start()

	return newListener(d, token)
}

// SubscribeObject calls callback with a fresh copy of obj whenever a commit
// changes it. When obj is deleted, callback is called with nil once and the
// subscription stops delivering.
func SubscribeObject[PT Record](d *Driver, obj PT, callback func(PT)) *Listener {
	rt := typeOfRecord(obj)
	key := obj.PrimaryKey()
	if key == "" {
		panic(fmt.Errorf("%w: cannot subscribe to %s", ErrMissingPrimaryKey, rt.name))
	}
	token := newToken()

	load := func() (data []byte, found bool, err error) {
		snap, err := d.ctrl.storage.Snapshot()
		if err != nil {
			return nil, false, err
		}
		defer snap.Release()

		data, err = snap.Get(rt.name, key)
		switch {
		case err == nil:
			return data, true, nil
		case errors.Is(err, storage.ErrNotFound):
			return nil, false, nil
		default:
			return nil, false, err
		}
	}

	var (
		w    *watch
		last []byte
		seen bool
	)
	w = newWatch(token, d.ctrl, []string{identityKey(rt, key)}, func(bool) bool {
		data, found, err := load()
		if err != nil {
			log.Warningf("database: subscription %s failed to load %s/%s: %s", token, rt.name, key, err)
			return false
		}
		// A deletion may be followed by a new object with the same key
		// before this runs. The deletion is reported in any case.
		deleted := w.deleted.SetToIf(true, false)

		if deleted || !found {
			if !seen {
				return false
			}
			w.deliver(func() {
				var none PT
				callback(none)
			})
			return true
		}

		seen = true
		if bytes.Equal(data, last) {
			return false
		}
		last = data

		r := rt.New()
		if _, err := dsd.Load(data, r); err != nil {
			log.Warningf("database: subscription %s failed to load %s/%s: %s", token, rt.name, key, err)
			return false
		}
		w.deliver(func() {
			callback(r.(PT)) //nolint:forcetypeassert
		})
		return false
	})

	d.addSubscriber(token, w, nil)
	w.register()
	if data, found, err := load(); err == nil && found {
		seen = true
		last = data
	}
	w.start()

	return newListener(d, token)
}

func sameEntries(a, b []entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].key != b[i].key || !bytes.Equal(a[i].data, b[i].data) {
			return false
		}
	}
	return true
}
