package buildconfig

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionInfo(t *testing.T) {
	info := VersionInfo()
	assert.Equal(t, Version(), info["version"])
	assert.Equal(t, Commit(), info["commit"])
	assert.Equal(t, runtime.Version(), info["go_version"])
	assert.NotContains(t, info, "build_date")
}

func TestString(t *testing.T) {
	old := commit
	t.Cleanup(func() { commit = old })

	commit = "0123456789abcdef"
	assert.Equal(t, "kindred dev (0123456, "+runtime.Version()+")", String())
}
