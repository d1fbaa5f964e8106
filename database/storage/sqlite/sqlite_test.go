package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/safing/dbdriver/database/storage/storagetest"
)

func TestSQLite(t *testing.T) {
	t.Parallel()

	db, err := NewSQLite("test", filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}

	storagetest.Run(t, db)
}
