package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Deltares-research/FloodAdapt-sub000/config"
)

func TestNew_LevelsAndFormats(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		logger, err := New(config.LoggingConfig{Level: "warn", Format: format})
		require.NoError(t, err, format)

		assert.False(t, logger.Core().Enabled(zap.InfoLevel))
		assert.True(t, logger.Core().Enabled(zap.WarnLevel))
	}
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)

	_, err = New(config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
