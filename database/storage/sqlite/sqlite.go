package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // register driver

	"github.com/safing/dbdriver/database/storage"
	"github.com/safing/dbdriver/log"
	"github.com/safing/dbdriver/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	bucket TEXT NOT NULL,
	key TEXT NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (bucket, key)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS sequences (
	bucket TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

// SQLite is a storage engine backed by a single SQLite file in WAL mode.
type SQLite struct {
	name string
	db   *sql.DB

	writeLock sync.Mutex
}

func init() {
	_ = storage.Register("sqlite", NewSQLite)
}

// NewSQLite opens/creates a SQLite database at the file location.
func NewSQLite(name, location string) (storage.Interface, error) {
	err := utils.EnsureDirectory(filepath.Dir(location), 0o700)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", "file:"+location+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Debugf("sqlite: opened %s at %s", name, location)
	return &SQLite{
		name: name,
		db:   db,
	}, nil
}

// Snapshot returns a view of the latest committed state.
func (s *SQLite) Snapshot() (storage.Snapshot, error) {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, err
	}

	// A deferred transaction takes its snapshot on the first read.
	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM sequences`).Scan(&count); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	return &snapshot{tx: tx}, nil
}

// Begin starts a write transaction.
func (s *SQLite) Begin() (storage.Txn, error) {
	s.writeLock.Lock()

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		s.writeLock.Unlock()
		return nil, err
	}
	return &txn{
		snapshot: snapshot{tx: tx},
		s:        s,
	}, nil
}

// Shutdown shuts down the database.
func (s *SQLite) Shutdown() error {
	return s.db.Close()
}

type snapshot struct {
	tx     *sql.Tx
	closed bool
}

func (sn *snapshot) Get(bucket, key string) ([]byte, error) {
	if sn.closed {
		return nil, storage.ErrTxnClosed
	}

	var value []byte
	err := sn.tx.QueryRow(`SELECT value FROM records WHERE bucket = ? AND key = ?`, bucket, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (sn *snapshot) ForEach(bucket string, fn func(key string, value []byte) error) error {
	if sn.closed {
		return storage.ErrTxnClosed
	}

	rows, err := sn.tx.Query(`SELECT key, value FROM records WHERE bucket = ? ORDER BY key`, bucket)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			value sql.RawBytes
		)
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (sn *snapshot) Buckets() ([]string, error) {
	if sn.closed {
		return nil, storage.ErrTxnClosed
	}

	rows, err := sn.tx.Query(`SELECT DISTINCT bucket FROM records ORDER BY bucket`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (sn *snapshot) Release() {
	if sn.closed {
		return
	}
	sn.closed = true

	if err := sn.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Warningf("sqlite: failed to release transaction: %s", err)
	}
}

type txn struct {
	snapshot
	s *SQLite
}

func (t *txn) Put(bucket, key string, value []byte) error {
	if t.closed {
		return storage.ErrTxnClosed
	}
	if err := storage.CheckKey(bucket, key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}

	_, err := t.tx.Exec(`
		INSERT INTO records (bucket, key, value) VALUES (?, ?, ?)
		ON CONFLICT (bucket, key) DO UPDATE SET value = excluded.value
	`, bucket, key, value)
	return err
}

func (t *txn) Delete(bucket, key string) error {
	if t.closed {
		return storage.ErrTxnClosed
	}

	_, err := t.tx.Exec(`DELETE FROM records WHERE bucket = ? AND key = ?`, bucket, key)
	return err
}

func (t *txn) DeleteAll() error {
	if t.closed {
		return storage.ErrTxnClosed
	}

	if _, err := t.tx.Exec(`DELETE FROM records`); err != nil {
		return err
	}
	_, err := t.tx.Exec(`DELETE FROM sequences`)
	return err
}

func (t *txn) NextSequence(bucket string) (uint64, error) {
	if t.closed {
		return 0, storage.ErrTxnClosed
	}
	if err := storage.CheckKey(bucket, "-"); err != nil {
		return 0, err
	}

	var seq uint64
	err := t.tx.QueryRow(`
		INSERT INTO sequences (bucket, value) VALUES (?, 1)
		ON CONFLICT (bucket) DO UPDATE SET value = value + 1
		RETURNING value
	`, bucket).Scan(&seq)
	return seq, err
}

func (t *txn) Commit() error {
	if t.closed {
		return storage.ErrTxnClosed
	}
	t.closed = true
	defer t.s.writeLock.Unlock()

	return t.tx.Commit()
}

func (t *txn) Release() {
	if t.closed {
		return
	}
	t.snapshot.Release()
	t.s.writeLock.Unlock()
}
