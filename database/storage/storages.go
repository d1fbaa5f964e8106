package storage

import (
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// A Factory creates a new database of it's type.
type Factory func(name, location string) (Interface, error)

var (
	storages     = make(map[string]Factory)
	storagesLock sync.Mutex
)

// Register registers a new storage type.
func Register(storageType string, factory Factory) error {
	storagesLock.Lock()
	defer storagesLock.Unlock()

	_, ok := storages[storageType]
	if ok {
		return fmt.Errorf("%w: %s", ErrFactoryExists, storageType)
	}

	storages[storageType] = factory
	return nil
}

// StartDatabase starts a new database with the given name and storageType at location.
func StartDatabase(name, storageType, location string) (Interface, error) {
	storagesLock.Lock()
	factory, ok := storages[storageType]
	storagesLock.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, storageType)
	}

	return factory(name, location)
}

// StorageTypes returns the names of all registered storage types.
func StorageTypes() []string {
	storagesLock.Lock()
	defer storagesLock.Unlock()

	types := maps.Keys(storages)
	slices.Sort(types)
	return types
}
