package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"

	"github.com/safing/dbdriver/database/storage"
	"github.com/safing/dbdriver/events"
	"github.com/safing/dbdriver/formats/dsd"
)

// Config describes the storage location a Driver opens.
type Config struct {
	// Path is the location of a persistent store: a file for bbolt and
	// sqlite, a directory for badger.
	Path string `json:"path,omitempty"`

	// MemoryIdentifier names an in-memory store. Drivers opened with the
	// same identifier share the data while at least one of them is open.
	MemoryIdentifier string `json:"memoryIdentifier,omitempty"`

	// StorageType selects the engine.
	// Default: "bbolt" for Path, "hashmap" for MemoryIdentifier
	StorageType string `json:"storageType,omitempty"`

	// Format is the serialization format of new records: json, cbor or msgpack.
	// Default: "json"
	Format string `json:"format,omitempty"`

	// SchemaVersion is stored in the store and checked when opening it.
	SchemaVersion uint64 `json:"schemaVersion,omitempty"`

	// DeleteIfMigrationNeeded deletes all records if the stored schema
	// version differs instead of failing to open.
	DeleteIfMigrationNeeded bool `json:"deleteIfMigrationNeeded,omitempty"`

	// Events is the bus notification names of subscriptions are registered on.
	// Default: events.Default
	Events *events.Bus `json:"-"`
}

// LoadConfig reads a config from a YAML or JSON file.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// relative paths are relative to the config file
	if cfg.Path != "" && !filepath.IsAbs(cfg.Path) {
		cfg.Path = filepath.Join(filepath.Dir(path), cfg.Path)
	}
	return cfg, nil
}

// validate checks the config and fills in defaults.
func (cfg *Config) validate() error {
	switch {
	case cfg.Path != "" && cfg.MemoryIdentifier != "":
		return ErrInvalidLocation
	case cfg.Path == "" && cfg.MemoryIdentifier == "":
		return ErrInvalidLocation
	}

	if cfg.StorageType == "" {
		if cfg.Path != "" {
			cfg.StorageType = "bbolt"
		} else {
			cfg.StorageType = "hashmap"
		}
	}
	if (cfg.MemoryIdentifier != "") != (cfg.StorageType == "hashmap") {
		return fmt.Errorf("%w: %s cannot be used with this location", ErrInvalidStorageType, cfg.StorageType)
	}
	registered := false
	for _, storageType := range storage.StorageTypes() {
		if storageType == cfg.StorageType {
			registered = true
		}
	}
	if !registered {
		return fmt.Errorf("%w: %s", ErrInvalidStorageType, cfg.StorageType)
	}

	if cfg.Path != "" {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return fmt.Errorf("invalid path %s: %w", cfg.Path, err)
		}
		cfg.Path = absPath
	}

	if cfg.Format == "" {
		cfg.Format = dsd.DefaultSerializationFormat.String()
	}
	if _, err := dsd.ParseFormat(cfg.Format); err != nil {
		return err
	}

	if cfg.Events == nil {
		cfg.Events = events.Default
	}
	return nil
}

func (cfg *Config) location() string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return cfg.MemoryIdentifier
}
