package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/config"
)

func TestBuild_Levels(t *testing.T) {
	tests := []struct {
		level    string
		debug    bool
		info     bool
		encoding string
	}{
		{"debug", true, true, "json"},
		{"info", false, true, "console"},
		{"error", false, false, "json"},
		{"shouting", false, true, "json"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := Build(config.Observability{
				ServiceName: "hatch",
				Process:     "view",
				LogLevel:    tt.level,
				LogEncoding: tt.encoding,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.debug, logger.Core().Enabled(zap.DebugLevel))
			assert.Equal(t, tt.info, logger.Core().Enabled(zap.InfoLevel))
		})
	}
}

func TestInteractive(t *testing.T) {
	assert.True(t, interactive("view"))
	assert.True(t, interactive("cli"))
	assert.False(t, interactive("api"))
	assert.False(t, interactive("worker"))
}
