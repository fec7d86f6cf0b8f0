package observability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Astoria-Consulting/mad-dogs/config"
	"github.com/Astoria-Consulting/mad-dogs/observability"
)

func TestNewLogger_Level(t *testing.T) {
	logger, err := observability.NewLogger(config.LoggerConfig{Level: "DEBUG"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = observability.NewLogger(config.LoggerConfig{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel), "empty level is info")
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	_, err := observability.NewLogger(config.LoggerConfig{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}
