package database

import (
	"fmt"
	"sync"

	"github.com/safing/dbdriver/database/storage"
)

var (
	controllers     = make(map[string]*controller)
	controllersLock sync.Mutex
)

// getController returns the controller of the configured location and
// starts the storage if this is the first Driver using it.
func getController(cfg Config) (*controller, error) {
	controllersLock.Lock()
	defer controllersLock.Unlock()

	location := cfg.location()
	id := cfg.StorageType + ":" + location

	// return controller if already started
	ctrl, ok := controllers[id]
	if ok {
		ctrl.refs++
		return ctrl, nil
	}

	// start storage
	storageInt, err := storage.StartDatabase(location, cfg.StorageType, location)
	if err != nil {
		return nil, fmt.Errorf("could not start database at %s (type %s): %w", location, cfg.StorageType, err)
	}

	// create controller
	ctrl, err = newController(location, cfg.StorageType, storageInt, cfg)
	if err != nil {
		_ = storageInt.Shutdown()
		return nil, fmt.Errorf("could not open database at %s: %w", location, err)
	}

	ctrl.refs = 1
	controllers[id] = ctrl
	return ctrl, nil
}

func (c *controller) addRef() {
	controllersLock.Lock()
	defer controllersLock.Unlock()

	c.refs++
}

// release drops a reference. The last reference shuts the storage down.
func (c *controller) release() error {
	controllersLock.Lock()
	defer controllersLock.Unlock()

	c.refs--
	if c.refs > 0 {
		return nil
	}

	delete(controllers, c.storageType+":"+c.location)
	return c.shutdown()
}
