package badger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dgraph-io/badger"

	"github.com/safing/dbdriver/database/storage"
	"github.com/safing/dbdriver/database/storage/storagetest"
)

func TestBadger(t *testing.T) {
	t.Parallel()

	db, err := NewBadger("test", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	storagetest.Run(t, db)
}

func TestBadgerDeleteAllLarge(t *testing.T) {
	t.Parallel()

	// small tables limit a transaction to about two thousand writes
	db, err := openBadger("test", badger.DefaultOptions(t.TempDir()).WithMaxTableSize(1<<20))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = db.Shutdown()
	}()

	for batch := 0; batch < 5; batch++ {
		txn, err := db.Begin()
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 1000; i++ {
			if err := txn.Put("Agent", fmt.Sprintf("%d-%04d", batch, i), []byte("value")); err != nil {
				t.Fatal(err)
			}
		}
		if err := txn.Commit(); err != nil {
			t.Fatal(err)
		}
	}
	txn, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := txn.NextSequence("Agent"); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	txn, err = db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.DeleteAll(); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	snap, err := db.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	defer snap.Release()
	buckets, err := snap.Buckets()
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 0 {
		t.Fatalf("buckets left after deleting everything: %v", buckets)
	}
	if _, err := snap.Get("Agent", "4-0999"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected key to be deleted, got %v", err)
	}

	txn, err = db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer txn.Release()
	seq, err := txn.NextSequence("Agent")
	if err != nil {
		t.Fatal(err)
	}
	if seq != 1 {
		t.Fatalf("sequence not reset: %d", seq)
	}
}
