package database

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/armon/go-radix"
	"github.com/tevino/abool"

	"github.com/safing/dbdriver/database/storage"
	"github.com/safing/dbdriver/formats/dsd"
	"github.com/safing/dbdriver/log"
)

const (
	metaBucket = "_meta"
	schemaKey  = "schema"
)

// A controller owns one opened storage location. It is shared by all
// Drivers of the location and dispatches commits to their watches.
type controller struct {
	location    string
	storageType string
	storage     storage.Interface
	format      dsd.SerializationFormat
	schema      uint64

	// refs is guarded by controllersLock.
	refs int

	// watches maps "bucket/" and "bucket/key" to sets of watches.
	watches     *radix.Tree
	watchesLock sync.Mutex

	shuttingDown *abool.AtomicBool
}

type schemaInfo struct {
	Version uint64 `json:"version"`
}

// changeSet collects the keys written in a write bracket. Keys whose last
// change in the bracket was a deletion are also kept in deleted.
type changeSet struct {
	buckets map[string]map[string]struct{}
	deleted map[string]struct{}
	all     bool
}

func newChangeSet() *changeSet {
	return &changeSet{
		buckets: make(map[string]map[string]struct{}),
		deleted: make(map[string]struct{}),
	}
}

func (cs *changeSet) add(bucket, key string) {
	keys, ok := cs.buckets[bucket]
	if !ok {
		keys = make(map[string]struct{})
		cs.buckets[bucket] = keys
	}
	keys[key] = struct{}{}
	delete(cs.deleted, bucket+"/"+key)
}

func (cs *changeSet) remove(bucket, key string) {
	cs.add(bucket, key)
	cs.deleted[bucket+"/"+key] = struct{}{}
}

// removeAll records the deletion of everything. Keys written afterwards are
// collected again.
func (cs *changeSet) removeAll() {
	cs.all = true
	cs.buckets = make(map[string]map[string]struct{})
	cs.deleted = make(map[string]struct{})
}

// wasDeleted returns whether the object at path ("bucket/key") does not
// exist after the bracket.
func (cs *changeSet) wasDeleted(path string) bool {
	if _, ok := cs.deleted[path]; ok {
		return true
	}
	if !cs.all {
		return false
	}
	bucket, key, _ := strings.Cut(path, "/")
	_, written := cs.buckets[bucket][key]
	return !written
}

func (cs *changeSet) empty() bool {
	return !cs.all && len(cs.buckets) == 0
}

func newController(location, storageType string, storageInt storage.Interface, cfg Config) (*controller, error) {
	format, err := dsd.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	c := &controller{
		location:     location,
		storageType:  storageType,
		storage:      storageInt,
		format:       format,
		schema:       cfg.SchemaVersion,
		watches:      radix.New(),
		shuttingDown: abool.NewBool(false),
	}
	if err := c.checkSchema(cfg.DeleteIfMigrationNeeded); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *controller) checkSchema(deleteIfMigrationNeeded bool) error {
	txn, err := c.storage.Begin()
	if err != nil {
		return err
	}
	defer txn.Release()

	data, err := txn.Get(metaBucket, schemaKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// new store
	case err != nil:
		return err
	default:
		var info schemaInfo
		if _, err := dsd.Load(data, &info); err != nil {
			return fmt.Errorf("failed to read schema marker: %w", err)
		}
		if info.Version == c.schema {
			return nil
		}
		if !deleteIfMigrationNeeded {
			return fmt.Errorf("%w: store has version %d, expected %d", ErrIncompatibleSchema, info.Version, c.schema)
		}

		log.Warningf("database: deleting %s for migration from schema version %d to %d", c.location, info.Version, c.schema)
		if err := txn.DeleteAll(); err != nil {
			return err
		}
	}

	if err := c.writeSchema(txn); err != nil {
		return err
	}
	return txn.Commit()
}

func (c *controller) writeSchema(txn storage.Txn) error {
	data, err := dsd.Dump(&schemaInfo{Version: c.schema}, dsd.JSON)
	if err != nil {
		return err
	}
	return txn.Put(metaBucket, schemaKey, data)
}

func (c *controller) addWatch(w *watch) {
	c.watchesLock.Lock()
	defer c.watchesLock.Unlock()

	for _, path := range w.paths {
		var set map[*watch]struct{}
		if v, ok := c.watches.Get(path); ok {
			set = v.(map[*watch]struct{}) //nolint:forcetypeassert
		} else {
			set = make(map[*watch]struct{})
			c.watches.Insert(path, set)
		}
		set[w] = struct{}{}
	}
}

func (c *controller) removeWatch(w *watch) {
	c.watchesLock.Lock()
	defer c.watchesLock.Unlock()

	for _, path := range w.paths {
		v, ok := c.watches.Get(path)
		if !ok {
			continue
		}
		set := v.(map[*watch]struct{}) //nolint:forcetypeassert
		delete(set, w)
		if len(set) == 0 {
			c.watches.Delete(path)
		}
	}
}

// notify wakes all watches affected by a commit. Object watches of deleted
// objects are marked before they are woken.
func (c *controller) notify(changes *changeSet) {
	if changes.empty() {
		return
	}

	affected := make(map[*watch]struct{})
	collect := func(watchPath string, v interface{}) bool {
		isObject := !strings.HasSuffix(watchPath, "/")
		deleted := isObject && changes.wasDeleted(watchPath)
		for w := range v.(map[*watch]struct{}) { //nolint:forcetypeassert
			if deleted {
				w.markDeleted()
			}
			affected[w] = struct{}{}
		}
		return false
	}

	c.watchesLock.Lock()
	if changes.all {
		c.watches.Walk(collect)
	} else {
		for bucket, keys := range changes.buckets {
			bucketPath := bucket + "/"
			for key := range keys {
				path := bucketPath + key
				c.watches.WalkPath(path, func(watchPath string, v interface{}) bool {
					// skip object watches of keys that are a prefix of this key
					if watchPath != bucketPath && watchPath != path {
						return false
					}
					return collect(watchPath, v)
				})
			}
		}
	}
	c.watchesLock.Unlock()

	for w := range affected {
		w.signal()
	}
}

func (c *controller) watchCount() int {
	c.watchesLock.Lock()
	defer c.watchesLock.Unlock()

	all := make(map[*watch]struct{})
	c.watches.Walk(func(_ string, v interface{}) bool {
		for w := range v.(map[*watch]struct{}) { //nolint:forcetypeassert
			all[w] = struct{}{}
		}
		return false
	})
	return len(all)
}

func (c *controller) shutdown() error {
	if !c.shuttingDown.SetToIf(false, true) {
		return nil
	}
	log.Debugf("database: shutting down %s", c.location)
	return c.storage.Shutdown()
}
