package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := exitError(4, "Failed to open state store", underlying)

	assert.Equal(t, "Failed to open state store: connection refused", err.Error())
	assert.ErrorIs(t, err, underlying)
	assert.Equal(t, 4, exitCodeOf(err))
}

func TestExitErrorWithoutCause(t *testing.T) {
	err := exitError(2, "Invalid configuration", nil)
	assert.Equal(t, "Invalid configuration", err.Error())
	assert.Equal(t, 2, exitCodeOf(err))
}

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, 0, exitCodeOf(nil))
	assert.Equal(t, 1, exitCodeOf(errors.New("plain error")))

	wrapped := fmt.Errorf("outer: %w", exitError(7, "inner", nil))
	assert.Equal(t, 7, exitCodeOf(wrapped))
}

func TestSetVersionInfo(t *testing.T) {
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	SetVersionInfo("1.0.0", "abc123", "2026-08-20")
	assert.Equal(t, "1.0.0", versionInfo.Version)
	assert.Equal(t, "abc123", versionInfo.Commit)
	assert.Equal(t, "2026-08-20", versionInfo.BuildDate)
}
