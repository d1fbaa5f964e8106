package badger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"sync"

	"github.com/dgraph-io/badger"
	"golang.org/x/exp/slices"

	"github.com/safing/dbdriver/database/storage"
	"github.com/safing/dbdriver/log"
)

// Keys are stored as "bucket/key". Sequences live outside of the bucket
// key space, behind a zero byte.
const (
	bucketSeparator = "/"
	sequencePrefix  = "\x00seq/"
)

// Badger is a storage engine backed by a badger directory.
type Badger struct {
	name string
	db   *badger.DB

	// badger detects conflicts instead of serializing writers
	writeLock sync.Mutex
}

func init() {
	_ = storage.Register("badger", NewBadger)
}

// NewBadger opens/creates a badger database in the location directory.
func NewBadger(name, location string) (storage.Interface, error) {
	return openBadger(name, badger.DefaultOptions(location))
}

func openBadger(name string, opts badger.Options) (*Badger, error) {
	opts.Logger = &logger{name: name}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Badger{
		name: name,
		db:   db,
	}, nil
}

// Snapshot returns a view of the latest committed state.
func (b *Badger) Snapshot() (storage.Snapshot, error) {
	return &snapshot{txn: b.db.NewTransaction(false)}, nil
}

// Begin starts a write transaction.
func (b *Badger) Begin() (storage.Txn, error) {
	b.writeLock.Lock()
	return &txn{
		snapshot: snapshot{txn: b.db.NewTransaction(true)},
		b:        b,
	}, nil
}

// Shutdown shuts down the database.
func (b *Badger) Shutdown() error {
	return b.db.Close()
}

func recordKey(bucket, key string) []byte {
	return []byte(bucket + bucketSeparator + key)
}

func bucketPrefix(bucket string) []byte {
	return []byte(bucket + bucketSeparator)
}

type snapshot struct {
	txn    *badger.Txn
	closed bool
}

func (s *snapshot) Get(bucket, key string) ([]byte, error) {
	if s.closed {
		return nil, storage.ErrTxnClosed
	}

	item, err := s.txn.Get(recordKey(bucket, key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s *snapshot) ForEach(bucket string, fn func(key string, value []byte) error) error {
	if s.closed {
		return storage.ErrTxnClosed
	}

	prefix := bucketPrefix(bucket)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := s.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := string(item.Key()[len(prefix):])
		err := item.Value(func(value []byte) error {
			return fn(key, value)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *snapshot) Buckets() ([]string, error) {
	if s.closed {
		return nil, storage.ErrTxnClosed
	}

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := s.txn.NewIterator(opts)
	defer it.Close()

	var names []string
	for it.Rewind(); it.Valid(); it.Next() {
		key := it.Item().Key()
		if len(key) == 0 || key[0] == 0 {
			continue
		}
		i := bytes.IndexByte(key, bucketSeparator[0])
		if i < 0 {
			continue
		}
		name := string(key[:i])
		if len(names) == 0 || names[len(names)-1] != name {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

func (s *snapshot) Release() {
	if s.closed {
		return
	}
	s.closed = true
	s.txn.Discard()
}

type txn struct {
	snapshot
	b *Badger
}

func (t *txn) Put(bucket, key string, value []byte) error {
	if t.closed {
		return storage.ErrTxnClosed
	}
	if err := storage.CheckKey(bucket, key); err != nil {
		return err
	}

	return t.txn.Set(recordKey(bucket, key), slices.Clone(value))
}

func (t *txn) Delete(bucket, key string) error {
	if t.closed {
		return storage.ErrTxnClosed
	}

	err := t.txn.Delete(recordKey(bucket, key))
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return nil
}

// DeleteAll deletes every key. When there are more keys than fit into one
// badger transaction, the deletion is committed in steps.
func (t *txn) DeleteAll() error {
	if t.closed {
		return storage.ErrTxnClosed
	}

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := t.txn.NewIterator(opts)
	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		err := t.txn.Delete(key)
		if errors.Is(err, badger.ErrTxnTooBig) {
			// Commit what fits and continue in a new transaction. The
			// deletion is not atomic anymore.
			if err := t.txn.Commit(); err != nil {
				return err
			}
			t.txn = t.b.db.NewTransaction(true)
			err = t.txn.Delete(key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) NextSequence(bucket string) (uint64, error) {
	if t.closed {
		return 0, storage.ErrTxnClosed
	}
	if err := storage.CheckKey(bucket, "-"); err != nil {
		return 0, err
	}

	key := []byte(sequencePrefix + bucket)
	var seq uint64
	item, err := t.txn.Get(key)
	switch {
	case err == nil:
		err = item.Value(func(value []byte) error {
			if len(value) != 8 {
				return storage.ErrInvalidKey
			}
			seq = binary.BigEndian.Uint64(value)
			return nil
		})
		if err != nil {
			return 0, err
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return 0, err
	}

	seq++
	encoded := make([]byte, 8)
	binary.BigEndian.PutUint64(encoded, seq)
	if err := t.txn.Set(key, encoded); err != nil {
		return 0, err
	}
	return seq, nil
}

func (t *txn) Commit() error {
	if t.closed {
		return storage.ErrTxnClosed
	}
	defer t.Release()

	return t.txn.Commit()
}

func (t *txn) Release() {
	if t.closed {
		return
	}
	t.snapshot.Release()
	t.b.writeLock.Unlock()
}

// logger routes badger's internal logging into the application log.
type logger struct {
	name string
}

func (l *logger) Errorf(format string, args ...interface{}) {
	log.Errorf("badger/"+l.name+": "+strings.TrimSpace(format), args...)
}

func (l *logger) Warningf(format string, args ...interface{}) {
	log.Warningf("badger/"+l.name+": "+strings.TrimSpace(format), args...)
}

func (l *logger) Infof(format string, args ...interface{}) {
	log.Debugf("badger/"+l.name+": "+strings.TrimSpace(format), args...)
}

func (l *logger) Debugf(format string, args ...interface{}) {
	log.Tracef("badger/"+l.name+": "+strings.TrimSpace(format), args...)
}
