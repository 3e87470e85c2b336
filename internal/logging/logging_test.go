package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	logger := New("not-a-level")
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNewHonorsRequestedLevel(t *testing.T) {
	logger := New("debug")
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}
