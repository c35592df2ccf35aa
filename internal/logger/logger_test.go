package logger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug level", func(t *testing.T) {
		l := NewLogger(true)
		require.NotNil(t, l)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("info level", func(t *testing.T) {
		l := NewLogger(false)
		require.NotNil(t, l)
		assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	})
}

func TestForRun(t *testing.T) {
	l, runID := ForRun(zap.NewNop())
	require.NotNil(t, l)
	_, err := uuid.Parse(runID)
	assert.NoError(t, err)
}

func TestComponentNilBase(t *testing.T) {
	assert.NotNil(t, Component(nil, "mail"))
}
