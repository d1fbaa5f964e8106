package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDirectory(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	nested := filepath.Join(base, "a", "b", "c")
	require.NoError(t, EnsureDirectory(nested, 0o700))

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// existing directories are fixed
	if runtime.GOOS != "windows" {
		require.NoError(t, os.Chmod(nested, 0o755))
		require.NoError(t, EnsureDirectory(nested, 0o700))
		info, err = os.Stat(nested)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	}

	file := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(file, []byte("data"), 0o600))
	assert.Error(t, EnsureDirectory(file, 0o700))
}
