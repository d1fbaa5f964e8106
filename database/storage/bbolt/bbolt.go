package bbolt

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"golang.org/x/exp/slices"

	"github.com/safing/dbdriver/database/storage"
	"github.com/safing/dbdriver/log"
	"github.com/safing/dbdriver/utils"
)

// BBolt is a storage engine backed by a single bbolt file. Every record
// type gets its own bolt bucket.
//
// A bolt writer that needs to grow the memory map waits for all open read
// transactions. Snapshots may be held for a long time, so starting a write
// transaction copies every open snapshot into memory and closes its read
// transaction. Snapshots taken while a write transaction runs are copied
// right away.
type BBolt struct {
	name string
	db   *bbolt.DB

	writeLock sync.Mutex

	snapshotsLock sync.Mutex
	snapshots     map[*snapshot]struct{}
	writing       bool
}

func init() {
	_ = storage.Register("bbolt", NewBBolt)
}

// NewBBolt opens/creates a bbolt database at the file location.
func NewBBolt(name, location string) (storage.Interface, error) {
	err := utils.EnsureDirectory(filepath.Dir(location), 0o700)
	if err != nil {
		return nil, err
	}

	db, err := bbolt.Open(location, 0o600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("bbolt: opened %s at %s", name, location)
	return &BBolt{
		name:      name,
		db:        db,
		snapshots: make(map[*snapshot]struct{}),
	}, nil
}

// Snapshot returns a view of the latest committed state.
func (b *BBolt) Snapshot() (storage.Snapshot, error) {
	tx, err := b.db.Begin(false)
	if err != nil {
		return nil, err
	}
	s := &snapshot{owner: b, tx: tx}

	b.snapshotsLock.Lock()
	writing := b.writing
	if !writing {
		b.snapshots[s] = struct{}{}
	}
	b.snapshotsLock.Unlock()

	if writing {
		s.detach()
	}
	return s, nil
}

// Begin starts a write transaction.
func (b *BBolt) Begin() (storage.Txn, error) {
	b.writeLock.Lock()

	b.snapshotsLock.Lock()
	b.writing = true
	open := make([]*snapshot, 0, len(b.snapshots))
	for s := range b.snapshots {
		open = append(open, s)
		delete(b.snapshots, s)
	}
	b.snapshotsLock.Unlock()

	for _, s := range open {
		s.detach()
	}

	tx, err := b.db.Begin(true)
	if err != nil {
		b.endWrite()
		return nil, err
	}
	return &txn{snapshot: snapshot{tx: tx}, b: b}, nil
}

func (b *BBolt) endWrite() {
	b.snapshotsLock.Lock()
	b.writing = false
	b.snapshotsLock.Unlock()

	b.writeLock.Unlock()
}

func (b *BBolt) forget(s *snapshot) {
	b.snapshotsLock.Lock()
	delete(b.snapshots, s)
	b.snapshotsLock.Unlock()
}

// Shutdown shuts down the database.
func (b *BBolt) Shutdown() error {
	return b.db.Close()
}

type pair struct {
	key   string
	value []byte
}

type snapshot struct {
	lock  sync.Mutex
	owner *BBolt

	tx     *bbolt.Tx
	closed bool

	// Set once the read transaction was replaced by an in-memory copy.
	detached  bool
	copied    map[string][]pair
	copyError error
}

// detach copies the visible state and closes the read transaction.
func (s *snapshot) detach() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed || s.detached {
		return
	}
	s.detached = true

	s.copied = make(map[string][]pair)
	s.copyError = s.tx.ForEach(func(name []byte, bucket *bbolt.Bucket) error {
		var pairs []pair
		err := bucket.ForEach(func(key, value []byte) error {
			// skip nested buckets
			if value == nil {
				return nil
			}
			pairs = append(pairs, pair{key: string(key), value: slices.Clone(value)})
			return nil
		})
		if len(pairs) > 0 {
			s.copied[string(name)] = pairs
		}
		return err
	})
	if s.copyError != nil {
		log.Warningf("bbolt: failed to copy snapshot of %s: %s", s.owner.name, s.copyError)
	}

	s.rollback()
}

func (s *snapshot) rollback() {
	err := s.tx.Rollback()
	if err != nil && !errors.Is(err, bbolt.ErrTxClosed) {
		log.Warningf("bbolt: failed to release transaction: %s", err)
	}
}

func (s *snapshot) Get(bucketName, key string) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	switch {
	case s.closed:
		return nil, storage.ErrTxnClosed
	case s.detached:
		if s.copyError != nil {
			return nil, s.copyError
		}
		pairs := s.copied[bucketName]
		i, found := slices.BinarySearchFunc(pairs, key, func(p pair, k string) int {
			return strings.Compare(p.key, k)
		})
		if !found {
			return nil, storage.ErrNotFound
		}
		return slices.Clone(pairs[i].value), nil
	}

	bucket := s.tx.Bucket([]byte(bucketName))
	if bucket == nil {
		return nil, storage.ErrNotFound
	}
	value := bucket.Get([]byte(key))
	if value == nil {
		return nil, storage.ErrNotFound
	}

	// copy data
	duplicate := make([]byte, len(value))
	copy(duplicate, value)
	return duplicate, nil
}

func (s *snapshot) ForEach(bucketName string, fn func(key string, value []byte) error) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	switch {
	case s.closed:
		return storage.ErrTxnClosed
	case s.detached:
		if s.copyError != nil {
			return s.copyError
		}
		for _, p := range s.copied[bucketName] {
			if err := fn(p.key, p.value); err != nil {
				return err
			}
		}
		return nil
	}

	bucket := s.tx.Bucket([]byte(bucketName))
	if bucket == nil {
		return nil
	}

	// Iterate over items in sorted key order.
	c := bucket.Cursor()
	for key, value := c.First(); key != nil; key, value = c.Next() {
		// skip nested buckets
		if value == nil {
			continue
		}
		if err := fn(string(key), value); err != nil {
			return err
		}
	}
	return nil
}

func (s *snapshot) Buckets() ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	switch {
	case s.closed:
		return nil, storage.ErrTxnClosed
	case s.detached:
		if s.copyError != nil {
			return nil, s.copyError
		}
		names := make([]string, 0, len(s.copied))
		for name := range s.copied {
			names = append(names, name)
		}
		slices.Sort(names)
		return names, nil
	}

	var names []string
	err := s.tx.ForEach(func(name []byte, bucket *bbolt.Bucket) error {
		if key, _ := bucket.Cursor().First(); key != nil {
			names = append(names, string(name))
		}
		return nil
	})
	return names, err
}

func (s *snapshot) Release() {
	if s.owner != nil {
		s.owner.forget(s)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.copied = nil

	if !s.detached {
		s.rollback()
	}
}

type txn struct {
	snapshot
	b *BBolt
}

func (t *txn) Put(bucketName, key string, value []byte) error {
	if t.closed {
		return storage.ErrTxnClosed
	}
	if err := storage.CheckKey(bucketName, key); err != nil {
		return err
	}

	bucket, err := t.tx.CreateBucketIfNotExists([]byte(bucketName))
	if err != nil {
		return err
	}

	// bbolt requires the value to stay valid for the life of the transaction
	duplicate := make([]byte, len(value))
	copy(duplicate, value)
	return bucket.Put([]byte(key), duplicate)
}

func (t *txn) Delete(bucketName, key string) error {
	if t.closed {
		return storage.ErrTxnClosed
	}

	bucket := t.tx.Bucket([]byte(bucketName))
	if bucket == nil {
		return nil
	}
	return bucket.Delete([]byte(key))
}

func (t *txn) DeleteAll() error {
	if t.closed {
		return storage.ErrTxnClosed
	}

	var names [][]byte
	err := t.tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
		names = append(names, append([]byte(nil), name...))
		return nil
	})
	if err != nil {
		return err
	}

	for _, name := range names {
		if err := t.tx.DeleteBucket(name); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) NextSequence(bucketName string) (uint64, error) {
	if t.closed {
		return 0, storage.ErrTxnClosed
	}
	if err := storage.CheckKey(bucketName, "-"); err != nil {
		return 0, err
	}

	bucket, err := t.tx.CreateBucketIfNotExists([]byte(bucketName))
	if err != nil {
		return 0, err
	}
	return bucket.NextSequence()
}

func (t *txn) Commit() error {
	if t.closed {
		return storage.ErrTxnClosed
	}
	t.closed = true
	defer t.b.endWrite()

	return t.tx.Commit()
}

func (t *txn) Release() {
	if t.closed {
		return
	}
	t.closed = true
	defer t.b.endWrite()

	t.rollback()
}
