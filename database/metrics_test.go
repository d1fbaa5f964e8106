package database

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMetrics(t *testing.T) {
	t.Parallel()
	d := openMemory(t)
	require.NoError(t, d.Add(&Agent{ID: 1}))

	buf := &bytes.Buffer{}
	WriteMetrics(buf)
	out := buf.String()

	assert.Contains(t, out, "dbdriver_commits_total ")
	assert.Contains(t, out, "dbdriver_subscriptions_active ")
	assert.Contains(t, out, `dbdriver_log_lines_total{level="error"}`)
	assert.Contains(t, out, "go_goroutines ")
	assert.NotContains(t, out, "dbdriver_commits_total 0\n")
}
