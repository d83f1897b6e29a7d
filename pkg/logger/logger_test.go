package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	log, err := New("debug")
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.True(t, log.Core().Enabled(-1), "debug level enables debug entries")

	log, err = New("warn")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(0), "warn level suppresses info entries")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud")
	assert.Error(t, err)
}
