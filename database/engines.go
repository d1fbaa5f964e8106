package database

// Register all storage engines.
import (
	_ "github.com/safing/dbdriver/database/storage/badger"
	_ "github.com/safing/dbdriver/database/storage/bbolt"
	_ "github.com/safing/dbdriver/database/storage/hashmap"
	_ "github.com/safing/dbdriver/database/storage/sqlite"
)
