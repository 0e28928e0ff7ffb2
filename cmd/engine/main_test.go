package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClockOffset(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"10:00", 10 * time.Hour},
		{"15:30", 15*time.Hour + 30*time.Minute},
		{"00:00", 0},
	}
	for _, c := range cases {
		got, err := parseClockOffset(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestParseClockOffset_InvalidFormat(t *testing.T) {
	_, err := parseClockOffset("not-a-time")
	assert.Error(t, err)
}

func TestLiveModeConfirmed_RequiresBothFlagAndEnv(t *testing.T) {
	t.Setenv("ALGO_LIVE_CONFIRMED", "")
	assert.False(t, liveModeConfirmed(true), "flag alone must not be enough")

	t.Setenv("ALGO_LIVE_CONFIRMED", "true")
	assert.False(t, liveModeConfirmed(false), "env alone must not be enough")
	assert.True(t, liveModeConfirmed(true), "flag and env together confirm live mode")
}
