package bbolt

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/safing/dbdriver/database/storage"
	"github.com/safing/dbdriver/database/storage/storagetest"
)

func TestBBolt(t *testing.T) {
	t.Parallel()

	location := filepath.Join(t.TempDir(), "nested", "db.bbolt")
	db, err := NewBBolt("test", location)
	if err != nil {
		t.Fatal(err)
	}

	storagetest.Run(t, db)
}

func TestBBoltReopen(t *testing.T) {
	t.Parallel()

	location := filepath.Join(t.TempDir(), "db.bbolt")
	db, err := NewBBolt("test", location)
	if err != nil {
		t.Fatal(err)
	}

	txn, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.Put("Agent", "1", []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := db.Shutdown(); err != nil {
		t.Fatal(err)
	}

	db, err = NewBBolt("test", location)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = db.Shutdown()
	}()

	snap, err := db.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	defer snap.Release()

	value, err := snap.Get("Agent", "1")
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != "persisted" {
		t.Fatalf("unexpected value after reopening: %q", value)
	}
}

func TestBBoltGrowWithOpenSnapshot(t *testing.T) {
	t.Parallel()

	location := filepath.Join(t.TempDir(), "db.bbolt")
	db, err := NewBBolt("test", location)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = db.Shutdown()
	}()

	txn, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.Put("Agent", "1", []byte("before")); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	// held by an idle reader for the whole write
	old, err := db.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	defer old.Release()
	if _, err := old.Get("Agent", "1"); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		txn, err := db.Begin()
		if err != nil {
			done <- err
			return
		}
		// grows the file well beyond the initial memory map
		value := bytes.Repeat([]byte{'x'}, 1<<20)
		for i := 0; i < 48; i++ {
			if err := txn.Put("Blob", fmt.Sprintf("%03d", i), value); err != nil {
				txn.Release()
				done <- err
				return
			}
		}
		if err := txn.Put("Agent", "1", []byte("after")); err != nil {
			txn.Release()
			done <- err
			return
		}
		done <- txn.Commit()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("write transaction blocked by open snapshot")
	}

	value, err := old.Get("Agent", "1")
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != "before" {
		t.Fatalf("old snapshot sees %q", value)
	}
	if _, err := old.Get("Blob", "000"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("old snapshot sees new bucket: %v", err)
	}
	buckets, err := old.Buckets()
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 1 || buckets[0] != "Agent" {
		t.Fatalf("unexpected buckets in old snapshot: %v", buckets)
	}

	fresh, err := db.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	defer fresh.Release()
	value, err = fresh.Get("Agent", "1")
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != "after" {
		t.Fatalf("new snapshot sees %q", value)
	}
}

func TestBBoltSnapshotDuringWrite(t *testing.T) {
	t.Parallel()

	location := filepath.Join(t.TempDir(), "db.bbolt")
	db, err := NewBBolt("test", location)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = db.Shutdown()
	}()

	txn, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.Put("Agent", "1", []byte("uncommitted")); err != nil {
		t.Fatal(err)
	}

	snap, err := db.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	defer snap.Release()

	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	if _, err := snap.Get("Agent", "1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("snapshot sees commit made after it was taken: %v", err)
	}
	err = snap.ForEach("Agent", func(key string, _ []byte) error {
		return fmt.Errorf("unexpected entry %s", key)
	})
	if err != nil {
		t.Fatal(err)
	}
}
