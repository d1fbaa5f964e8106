package storage

// Interface is implemented by all storage engines. Records are stored as
// opaque values under a key within a bucket. Engines serialize write
// transactions; readers work on snapshots that are isolated from commits
// made after the snapshot was taken.
type Interface interface {
	// Snapshot returns a read-only view of the latest committed state. It
	// must be released when done.
	Snapshot() (Snapshot, error)

	// Begin starts a write transaction. Begin blocks while another write
	// transaction of the same engine is in progress.
	Begin() (Txn, error)

	// Shutdown closes the engine. Snapshots and transactions must be
	// released before.
	Shutdown() error
}

// Snapshot is a consistent read-only view of the store.
type Snapshot interface {
	// Get returns a copy of the value stored at bucket/key or ErrNotFound.
	Get(bucket, key string) ([]byte, error)

	// ForEach calls fn for every entry of bucket in ascending key order.
	// The value is only valid during the call. Iteration stops at the
	// first error returned by fn, which ForEach returns.
	ForEach(bucket string, fn func(key string, value []byte) error) error

	// Buckets returns the names of all non-empty buckets in ascending order.
	Buckets() ([]string, error)

	// Release frees the snapshot. For a Txn, Release discards all
	// uncommitted changes. Release may be called multiple times and after
	// Commit.
	Release()
}

// Txn is a write transaction. Reads through a Txn see its own writes.
type Txn interface {
	Snapshot

	// Put stores value at bucket/key. The value is copied.
	Put(bucket, key string, value []byte) error

	// Delete removes bucket/key. Deleting a missing key is not an error.
	Delete(bucket, key string) error

	// DeleteAll removes all buckets, including sequences.
	DeleteAll() error

	// NextSequence returns the next value of the bucket's sequence. The
	// first value is 1.
	NextSequence(bucket string) (uint64, error)

	// Commit makes all changes visible to new snapshots. The transaction
	// is released afterwards, also if committing fails.
	Commit() error
}
