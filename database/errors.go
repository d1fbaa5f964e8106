package database

import (
	"errors"
)

// Errors.
var (
	ErrNotInWriteBracket  = errors.New("database: write operation outside of a write bracket")
	ErrNestedBracket      = errors.New("database: write brackets must not be nested")
	ErrInvalidRecordType  = errors.New("database: records must be pointers to structs")
	ErrInvalidTypeName    = errors.New("database: type names must not be empty, contain \"/\" or start with \"_\"")
	ErrMissingPrimaryKey  = errors.New("database: record has no primary key")
	ErrPrimaryKeyChanged  = errors.New("database: primary key of stored record changed")
	ErrDuplicateValue     = errors.New("database: duplicate value for unique field")
	ErrIncompatibleSchema = errors.New("database: incompatible schema version")
	ErrInvalidLocation    = errors.New("database: exactly one of path and memory identifier must be set")
	ErrInvalidStorageType = errors.New("database: invalid storage type")
	ErrDriverClosed       = errors.New("database: driver is closed")
)
