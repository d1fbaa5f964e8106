package hashmap

import (
	"testing"

	"github.com/safing/dbdriver/database/storage/storagetest"
)

func TestHashMap(t *testing.T) {
	t.Parallel()

	db, err := NewHashMap("test", "")
	if err != nil {
		t.Fatal(err)
	}

	storagetest.Run(t, db)

	// shut down engines refuse new work
	if _, err := db.Snapshot(); err == nil {
		t.Fatal("snapshot after shutdown should fail")
	}
	if _, err := db.Begin(); err == nil {
		t.Fatal("begin after shutdown should fail")
	}
}
