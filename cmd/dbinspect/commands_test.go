package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/dbdriver/database"
)

type Note struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

func (n *Note) PrimaryKey() string {
	return database.FormatKey(n.ID)
}

func createStore(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "notes.db")
	d, err := database.Open(database.Config{Path: path, Format: "cbor"})
	require.NoError(t, err)
	require.NoError(t, d.Add(&Note{ID: 1, Text: "first"}, &Note{ID: 2, Text: "second"}))
	require.NoError(t, d.Close())
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestBuckets(t *testing.T) {
	path := createStore(t)

	out, err := run(t, "buckets", "--path", path)
	require.NoError(t, err)
	assert.Equal(t, "Note\t2\n_meta\t1\n", out)
}

func TestDump(t *testing.T) {
	path := createStore(t)

	out, err := run(t, "dump", "Note", "--path", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	key, js, ok := strings.Cut(lines[0], "\t")
	require.True(t, ok)
	assert.Equal(t, "1", key)
	assert.JSONEq(t, `{"id":1,"text":"first"}`, js)

	out, err = run(t, "dump", "Missing", "--path", path)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPurge(t *testing.T) {
	path := createStore(t)

	_, err := run(t, "purge", "--path", path)
	require.Error(t, err)

	out, err := run(t, "purge", "--yes", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted all records")

	out, err = run(t, "buckets", "--path", path)
	require.NoError(t, err)
	assert.Equal(t, "_meta\t1\n", out)
}

func TestConfigFile(t *testing.T) {
	path := createStore(t)
	cfgPath := filepath.Join(filepath.Dir(path), "store.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("path: notes.db\nformat: cbor\n"), 0o600))

	out, err := run(t, "buckets", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Note\t2\n")

	_, err = run(t, "buckets", "--config", cfgPath, "--path", path)
	assert.Error(t, err)
	_, err = run(t, "buckets")
	assert.Error(t, err)
	_, err = run(t, "buckets", "--path", path, "--log", "loud")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "commit ")
}
