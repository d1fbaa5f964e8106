package info

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion(t *testing.T) {
	Set("dbtest", "1.2.3")

	i := GetInfo()
	assert.Equal(t, "dbtest", i.Name)
	assert.Equal(t, runtime.Version(), i.GoVersion)
	assert.True(t, strings.HasPrefix(Version(), "1.2.3"))

	full := FullVersion()
	assert.True(t, strings.HasPrefix(full, "dbtest 1.2.3"), full)
	assert.Contains(t, full, "commit ")
}
