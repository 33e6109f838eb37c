package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlexibleDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-03-15T10:30:00", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-03-15T10:30:00Z", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-03-15T10:30:00.123456", time.Date(2024, 3, 15, 10, 30, 0, 123456000, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseFlexibleDate(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s: got %s", tc.in, got)
	}

	_, err := ParseFlexibleDate("15/03/2024")
	assert.Error(t, err)
	_, err = ParseFlexibleDate("")
	assert.Error(t, err)
}

func TestParseTimeRange(t *testing.T) {
	now := time.Date(2024, 6, 30, 15, 45, 0, 0, time.UTC)

	start, end, err := ParseTimeRange("7d", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 23, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, now, end)

	start, _, err = ParseTimeRange("4w", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), start)

	start, _, err = ParseTimeRange("3m", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC), start)

	start, _, err = ParseTimeRange("1y", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC), start)

	start, end, err = ParseTimeRange("today", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, now, end)

	// Tokens are case-insensitive and trimmed.
	start, _, err = ParseTimeRange("  7D ", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 23, 0, 0, 0, 0, time.UTC), start)
}

func TestParseTimeRangeRejectsBadTokens(t *testing.T) {
	now := time.Now()
	for _, in := range []string{"", "7", "d7", "7h", "-3d", "0d", "last week"} {
		_, _, err := ParseTimeRange(in, now)
		assert.Error(t, err, "token %q", in)
	}
}
