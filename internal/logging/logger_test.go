package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", "json")
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger, err = NewLogger("WARN", "console")
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewLoggerRejectsBadSettings(t *testing.T) {
	_, err := NewLogger("loud", "console")
	require.Error(t, err)

	_, err = NewLogger("info", "xml")
	require.Error(t, err)
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))
}
