package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/dbdriver/database/query"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configs := map[string]Config{
		"hashmap":        {MemoryIdentifier: t.Name()},
		"hashmap-cbor":   {MemoryIdentifier: t.Name() + "-cbor", Format: "cbor"},
		"hashmap-msgpck": {MemoryIdentifier: t.Name() + "-msgpack", Format: "msgpack"},
		"bbolt":          {Path: filepath.Join(dir, "bbolt", "agents.db")},
		"bbolt-cbor":     {Path: filepath.Join(dir, "bbolt-cbor.db"), Format: "cbor"},
		"badger":         {Path: filepath.Join(dir, "badger"), StorageType: "badger"},
		"sqlite":         {Path: filepath.Join(dir, "agents.sqlite"), StorageType: "sqlite"},
		"sqlite-msgpack": {Path: filepath.Join(dir, "msgpack.sqlite"), StorageType: "sqlite", Format: "msgpack"},
	}

	for name, cfg := range configs {
		cfg := cfg
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			testRoundTrip(t, cfg, 25)
		})
	}
}

func testRoundTrip(t *testing.T, cfg Config, n int) {
	t.Helper()

	d, err := Open(cfg)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, d.Close())
	}()

	err = d.ReadWrite(func(c *Context) {
		for i := 0; i < n; i++ {
			a := CreateObject[Agent](c)
			a.Name = fmt.Sprintf("agent %d", i)
			a.Runs = i
			if i%2 == 0 {
				a.Status = "even"
			}
		}
	})
	require.NoError(t, err)

	agents := Objects[Agent](d.Refresh(), Where(nil, Ascending("runs")))
	require.Len(t, agents, n)
	for i, a := range agents {
		assert.Equal(t, fmt.Sprintf("agent %d", i), a.Name)
		assert.Equal(t, i+1, a.ID)
	}

	even := Objects[Agent](d, Where(parseFilter(t, `status == "even"`)))
	assert.Len(t, even, (n+1)/2)

	a, ok := ObjectByMainKey[Agent](d, MainKey[int]{Key: "runs", Value: 7})
	require.True(t, ok)
	assert.Equal(t, "agent 7", a.Name)

	require.NoError(t, d.RemoveAll())
	assert.Empty(t, Objects[Agent](d.Refresh(), nil))

	// sequences start over
	require.NoError(t, d.ReadWrite(func(c *Context) {
		a := CreateObject[Agent](c)
		assert.Equal(t, 1, a.ID)
	}))
}

func TestPersistence(t *testing.T) {
	t.Parallel()

	for _, storageType := range []string{"bbolt", "badger", "sqlite"} {
		storageType := storageType
		t.Run(storageType, func(t *testing.T) {
			t.Parallel()

			cfg := Config{
				Path:        filepath.Join(t.TempDir(), "store"),
				StorageType: storageType,
			}
			d, err := Open(cfg)
			require.NoError(t, err)
			require.NoError(t, d.Add(&Agent{ID: 3, Name: "Smith"}, &Setting{Name: "theme", Value: "dark"}))
			require.NoError(t, d.Close())

			d, err = Open(cfg)
			require.NoError(t, err)
			defer func() {
				require.NoError(t, d.Close())
			}()

			a, ok := Object[Agent](d, 3)
			require.True(t, ok)
			assert.Equal(t, "Smith", a.Name)
			s, ok := Object[Setting](d, "theme")
			require.True(t, ok)
			assert.Equal(t, "dark", s.Value)
		})
	}
}

func TestLargeWriteWhileReading(t *testing.T) {
	t.Parallel()

	cfg := Config{Path: filepath.Join(t.TempDir(), "agents.db")}
	writer, err := Open(cfg)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, writer.Close())
	}()
	reader, err := Open(cfg)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, reader.Close())
	}()

	require.NoError(t, writer.Add(&Agent{ID: 1, Name: "Smith"}))

	// keeps a snapshot open until the next Refresh
	_, ok := Object[Agent](reader, 1)
	require.True(t, ok)

	done := make(chan error, 1)
	go func() {
		done <- writer.ReadWrite(func(c *Context) {
			for i := 2; i < 10; i++ {
				c.Add(&Agent{ID: i, Name: strings.Repeat("n", 1<<20)})
			}
		})
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("write blocked by an open reader")
	}

	_, ok = Object[Agent](reader, 5)
	assert.False(t, ok, "reader should keep its snapshot until refreshed")
	assert.Len(t, Objects[Agent](reader, nil), 1)

	a, ok := Object[Agent](reader.Refresh(), 5)
	require.True(t, ok)
	assert.Len(t, a.Name, 1<<20)
	assert.Len(t, Objects[Agent](reader, nil), 9)
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	invalid := []Config{
		{},
		{Path: "a.db", MemoryIdentifier: "a"},
		{MemoryIdentifier: "a", StorageType: "bbolt"},
		{Path: "a.db", StorageType: "hashmap"},
		{Path: "a.db", StorageType: "leveldb"},
		{MemoryIdentifier: "a", Format: "xml"},
	}
	for _, cfg := range invalid {
		cfg := cfg
		assert.Error(t, cfg.validate(), "%+v should be invalid", cfg)
	}

	cfg := Config{Path: "a.db"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "bbolt", cfg.StorageType)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, filepath.IsAbs(cfg.Path))
	assert.NotNil(t, cfg.Events)

	cfg = Config{MemoryIdentifier: "a"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "hashmap", cfg.StorageType)
	assert.Equal(t, "a", cfg.location())
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")
	err := os.WriteFile(path, []byte(`
path: data/agents.db
storageType: sqlite
format: cbor
schemaVersion: 3
deleteIfMigrationNeeded: true
`), 0o600)
	require.NoError(t, err)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Path:                    filepath.Join(dir, "data", "agents.db"),
		StorageType:             "sqlite",
		Format:                  "cbor",
		SchemaVersion:           3,
		DeleteIfMigrationNeeded: true,
	}, cfg)

	d, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Add(&Agent{ID: 1}))
	require.NoError(t, d.Close())

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func parseFilter(t *testing.T, text string) query.Condition {
	t.Helper()

	cond, err := query.ParseCondition(text)
	require.NoError(t, err)
	return cond
}
