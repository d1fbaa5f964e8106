// Package storagetest checks that a storage engine behaves as the database
// layer expects. Every engine runs it from its own tests.
package storagetest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/safing/dbdriver/database/storage"
)

// Run runs all checks against an empty engine and shuts it down afterwards.
func Run(t *testing.T, db storage.Interface) {
	t.Helper()

	testReadWrite(t, db)
	testIsolation(t, db)
	testRelease(t, db)
	testOrder(t, db)
	testSequences(t, db)
	testDeleteAll(t, db)

	if err := db.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func mustBegin(t *testing.T, db storage.Interface) storage.Txn {
	t.Helper()

	txn, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	return txn
}

func mustSnapshot(t *testing.T, db storage.Interface) storage.Snapshot {
	t.Helper()

	snap, err := db.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func expectValue(t *testing.T, snap storage.Snapshot, bucket, key, expected string) {
	t.Helper()

	value, err := snap.Get(bucket, key)
	if err != nil {
		t.Fatalf("failed to get %s/%s: %s", bucket, key, err)
	}
	if !bytes.Equal(value, []byte(expected)) {
		t.Fatalf("unexpected value for %s/%s: %q", bucket, key, value)
	}
}

func expectMissing(t *testing.T, snap storage.Snapshot, bucket, key string) {
	t.Helper()

	_, err := snap.Get(bucket, key)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected %s/%s to be missing, got %v", bucket, key, err)
	}
}

func testReadWrite(t *testing.T, db storage.Interface) {
	t.Helper()

	txn := mustBegin(t, db)
	expectMissing(t, txn, "Agent", "1")

	value := []byte("banana")
	if err := txn.Put("Agent", "1", value); err != nil {
		t.Fatal(err)
	}
	// values are copied on put
	value[0] = 'B'
	expectValue(t, txn, "Agent", "1", "banana")

	if err := txn.Put("", "1", value); !errors.Is(err, storage.ErrInvalidKey) {
		t.Fatalf("expected invalid key error, got %v", err)
	}

	if err := txn.Delete("Agent", "missing"); err != nil {
		t.Fatalf("deleting a missing key should succeed: %s", err)
	}
	if err := txn.Delete("Missing", "missing"); err != nil {
		t.Fatalf("deleting from a missing bucket should succeed: %s", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	txn.Release()

	snap := mustSnapshot(t, db)
	defer snap.Release()
	expectValue(t, snap, "Agent", "1", "banana")
	expectMissing(t, snap, "Agent", "2")
	expectMissing(t, snap, "Missing", "1")

	// returned values are copies
	got, err := snap.Get("Agent", "1")
	if err != nil {
		t.Fatal(err)
	}
	got[0] = 'X'
	expectValue(t, snap, "Agent", "1", "banana")
}

func testIsolation(t *testing.T, db storage.Interface) {
	t.Helper()

	before := mustSnapshot(t, db)
	defer before.Release()

	txn := mustBegin(t, db)
	if err := txn.Put("Agent", "1", []byte("cherry")); err != nil {
		t.Fatal(err)
	}
	if err := txn.Delete("Agent", "1"); err != nil {
		t.Fatal(err)
	}
	if err := txn.Put("Agent", "2", []byte("date")); err != nil {
		t.Fatal(err)
	}
	expectMissing(t, txn, "Agent", "1")

	// uncommitted changes are invisible
	during := mustSnapshot(t, db)
	expectValue(t, during, "Agent", "1", "banana")
	expectMissing(t, during, "Agent", "2")
	during.Release()

	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	// old snapshots keep their view
	expectValue(t, before, "Agent", "1", "banana")
	expectMissing(t, before, "Agent", "2")

	after := mustSnapshot(t, db)
	defer after.Release()
	expectMissing(t, after, "Agent", "1")
	expectValue(t, after, "Agent", "2", "date")
}

func testRelease(t *testing.T, db storage.Interface) {
	t.Helper()

	txn := mustBegin(t, db)
	if err := txn.Put("Agent", "3", []byte("elderberry")); err != nil {
		t.Fatal(err)
	}
	txn.Release()
	txn.Release()

	if err := txn.Commit(); err == nil {
		t.Fatal("commit after release should fail")
	}

	snap := mustSnapshot(t, db)
	defer snap.Release()
	expectMissing(t, snap, "Agent", "3")
}

func testOrder(t *testing.T, db storage.Interface) {
	t.Helper()

	txn := mustBegin(t, db)
	for _, key := range []string{"c", "a", "d", "b"} {
		if err := txn.Put("Letter", key, []byte(key)); err != nil {
			t.Fatal(err)
		}
	}
	if err := txn.Put("Chat", "x", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	snap := mustSnapshot(t, db)
	defer snap.Release()

	var keys string
	err := snap.ForEach("Letter", func(key string, value []byte) error {
		if key != string(value) {
			t.Errorf("value mismatch for %s: %q", key, value)
		}
		keys += key
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if keys != "abcd" {
		t.Fatalf("unexpected iteration order: %s", keys)
	}

	stop := errors.New("stop")
	calls := 0
	err = snap.ForEach("Letter", func(string, []byte) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("iteration should stop at first error, got %v after %d calls", err, calls)
	}

	if err := snap.ForEach("Missing", func(string, []byte) error {
		t.Error("missing bucket should be empty")
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	buckets, err := snap.Buckets()
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 3 || buckets[0] != "Agent" || buckets[1] != "Chat" || buckets[2] != "Letter" {
		t.Fatalf("unexpected buckets: %v", buckets)
	}
}

func testSequences(t *testing.T, db storage.Interface) {
	t.Helper()

	txn := mustBegin(t, db)
	for expected := uint64(1); expected <= 3; expected++ {
		seq, err := txn.NextSequence("Message")
		if err != nil {
			t.Fatal(err)
		}
		if seq != expected {
			t.Fatalf("unexpected sequence %d, expected %d", seq, expected)
		}
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	// discarded sequence increments may be reused
	txn = mustBegin(t, db)
	seq, err := txn.NextSequence("Message")
	if err != nil {
		t.Fatal(err)
	}
	if seq != 4 {
		t.Fatalf("unexpected sequence %d, expected 4", seq)
	}
	txn.Release()

	txn = mustBegin(t, db)
	defer txn.Release()
	seq, err = txn.NextSequence("Other")
	if err != nil {
		t.Fatal(err)
	}
	if seq != 1 {
		t.Fatalf("sequences should be per bucket, got %d", seq)
	}
}

func testDeleteAll(t *testing.T, db storage.Interface) {
	t.Helper()

	txn := mustBegin(t, db)
	if err := txn.DeleteAll(); err != nil {
		t.Fatal(err)
	}
	expectMissing(t, txn, "Agent", "2")
	if err := txn.Put("Agent", "9", []byte("fig")); err != nil {
		t.Fatal(err)
	}
	seq, err := txn.NextSequence("Message")
	if err != nil {
		t.Fatal(err)
	}
	if seq != 1 {
		t.Fatalf("sequences should restart after deleting all, got %d", seq)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	snap := mustSnapshot(t, db)
	defer snap.Release()
	buckets, err := snap.Buckets()
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 1 || buckets[0] != "Agent" {
		t.Fatalf("unexpected buckets after delete all: %v", buckets)
	}
	expectValue(t, snap, "Agent", "9", "fig")
}
