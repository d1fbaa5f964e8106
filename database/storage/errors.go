package storage

import "errors"

// Errors for storages.
var (
	ErrNotFound      = errors.New("storage: entry not found")
	ErrInvalidKey    = errors.New("storage: invalid key")
	ErrTxnClosed     = errors.New("storage: transaction already closed")
	ErrShutdown      = errors.New("storage: engine is shut down")
	ErrUnknownType   = errors.New("storage: unknown storage type")
	ErrFactoryExists = errors.New("storage: factory for this type already exists")
)

// CheckKey returns ErrInvalidKey if bucket or key cannot be stored.
func CheckKey(bucket, key string) error {
	switch {
	case bucket == "":
		return ErrInvalidKey
	case key == "":
		return ErrInvalidKey
	}
	for i := 0; i < len(bucket); i++ {
		if bucket[i] == '/' {
			return ErrInvalidKey
		}
	}
	return nil
}
