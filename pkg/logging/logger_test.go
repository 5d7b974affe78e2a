package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, logger.Named("ledger"))

	_, err = NewLogger(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)

	_, err = NewLogger(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestGlobal(t *testing.T) {
	assert.NotNil(t, L())

	custom := NewNoOpLogger()
	SetGlobal(custom)
	assert.Same(t, custom, L())

	SetGlobal(nil)
	assert.NotNil(t, L())
}
