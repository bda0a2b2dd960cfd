package cmd

import (
	"testing"

	"chunkc/common"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogLevel(t *testing.T) {
	t.Setenv(common.EnvLogLevel, "warn")
	assert.Equal(t, "warn", defaultLogLevel())

	t.Setenv(common.EnvLogLevel, "loud")
	assert.Equal(t, "verbose", defaultLogLevel())
}
