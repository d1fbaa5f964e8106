package hashmap

import (
	"sync"

	"github.com/tevino/abool"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/safing/dbdriver/database/storage"
)

// HashMap is an in-memory storage engine. Committed state is immutable:
// transactions copy the buckets they modify and swap in the new state on
// commit, so snapshots are a plain pointer to a past state.
type HashMap struct {
	name string

	current   *state
	stateLock sync.RWMutex

	// writeLock is held by the active write transaction.
	writeLock sync.Mutex
	shutdown  *abool.AtomicBool
}

type state struct {
	buckets   map[string]map[string][]byte
	sequences map[string]uint64
}

func init() {
	_ = storage.Register("hashmap", NewHashMap)
}

// NewHashMap creates a hashmap database.
func NewHashMap(name, location string) (storage.Interface, error) {
	return &HashMap{
		name: name,
		current: &state{
			buckets:   make(map[string]map[string][]byte),
			sequences: make(map[string]uint64),
		},
		shutdown: abool.New(),
	}, nil
}

func (hm *HashMap) latest() *state {
	hm.stateLock.RLock()
	defer hm.stateLock.RUnlock()

	return hm.current
}

// Snapshot returns a view of the latest committed state.
func (hm *HashMap) Snapshot() (storage.Snapshot, error) {
	if hm.shutdown.IsSet() {
		return nil, storage.ErrShutdown
	}
	return &snapshot{state: hm.latest()}, nil
}

// Begin starts a write transaction.
func (hm *HashMap) Begin() (storage.Txn, error) {
	if hm.shutdown.IsSet() {
		return nil, storage.ErrShutdown
	}
	hm.writeLock.Lock()

	base := hm.latest()
	return &txn{
		snapshot: snapshot{
			state: &state{
				buckets:   maps.Clone(base.buckets),
				sequences: maps.Clone(base.sequences),
			},
		},
		hm:     hm,
		copied: make(map[string]struct{}),
		open:   abool.NewBool(true),
	}, nil
}

// Shutdown shuts down the database.
func (hm *HashMap) Shutdown() error {
	hm.shutdown.Set()
	return nil
}

type snapshot struct {
	state *state
}

func (s *snapshot) Get(bucket, key string) ([]byte, error) {
	value, ok := s.state.buckets[bucket][key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(value), nil
}

func (s *snapshot) ForEach(bucket string, fn func(key string, value []byte) error) error {
	entries := s.state.buckets[bucket]
	keys := maps.Keys(entries)
	slices.Sort(keys)

	for _, key := range keys {
		if err := fn(key, entries[key]); err != nil {
			return err
		}
	}
	return nil
}

func (s *snapshot) Buckets() ([]string, error) {
	names := make([]string, 0, len(s.state.buckets))
	for name, entries := range s.state.buckets {
		if len(entries) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (s *snapshot) Release() {}

type txn struct {
	snapshot

	hm *HashMap
	// copied holds the buckets already cloned from the base state.
	copied map[string]struct{}
	open   *abool.AtomicBool
}

func (t *txn) writableBucket(bucket string) map[string][]byte {
	if _, ok := t.copied[bucket]; !ok {
		entries := maps.Clone(t.state.buckets[bucket])
		if entries == nil {
			entries = make(map[string][]byte)
		}
		t.state.buckets[bucket] = entries
		t.copied[bucket] = struct{}{}
	}
	return t.state.buckets[bucket]
}

func (t *txn) Put(bucket, key string, value []byte) error {
	if !t.open.IsSet() {
		return storage.ErrTxnClosed
	}
	if err := storage.CheckKey(bucket, key); err != nil {
		return err
	}

	t.writableBucket(bucket)[key] = slices.Clone(value)
	return nil
}

func (t *txn) Delete(bucket, key string) error {
	if !t.open.IsSet() {
		return storage.ErrTxnClosed
	}
	if _, ok := t.state.buckets[bucket][key]; !ok {
		return nil
	}

	delete(t.writableBucket(bucket), key)
	return nil
}

func (t *txn) DeleteAll() error {
	if !t.open.IsSet() {
		return storage.ErrTxnClosed
	}

	t.state.buckets = make(map[string]map[string][]byte)
	t.state.sequences = make(map[string]uint64)
	t.copied = make(map[string]struct{})
	return nil
}

func (t *txn) NextSequence(bucket string) (uint64, error) {
	if !t.open.IsSet() {
		return 0, storage.ErrTxnClosed
	}
	if err := storage.CheckKey(bucket, "-"); err != nil {
		return 0, err
	}

	t.state.sequences[bucket]++
	return t.state.sequences[bucket], nil
}

func (t *txn) Commit() error {
	if !t.open.SetToIf(true, false) {
		return storage.ErrTxnClosed
	}
	defer t.hm.writeLock.Unlock()

	t.hm.stateLock.Lock()
	defer t.hm.stateLock.Unlock()

	if t.hm.shutdown.IsSet() {
		return storage.ErrShutdown
	}
	t.hm.current = t.state
	return nil
}

func (t *txn) Release() {
	if t.open.SetToIf(true, false) {
		t.hm.writeLock.Unlock()
	}
}
