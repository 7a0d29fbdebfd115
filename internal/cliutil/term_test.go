package cliutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

//nolint:paralleltest // can't use .Parallel() with .Setenv()
func TestGetTerminalWidthHonorsColumns(t *testing.T) {
	t.Setenv("COLUMNS", "132")
	assert.Equal(t, 132, GetTerminalWidth())
}

//nolint:paralleltest // can't use .Parallel() with .Setenv()
func TestGetTerminalWidthDefaultsToZero(t *testing.T) {
	t.Setenv("COLUMNS", "")
	assert.Equal(t, 0, GetTerminalWidth())
}
