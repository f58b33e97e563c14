package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/godash/internal/schedule"
)

// 2025-06-02 is a Monday.
var start = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

func TestExpandPresets(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		weekdays []int
		want     string
	}{
		{name: "hourly", interval: "@hourly", want: "30 * * * *"},
		{name: "daily", interval: "@daily", want: "30 9 * * *"},
		{name: "weekday daily", interval: "@weekdaydaily", want: "30 9 * * 1-5"},
		{name: "weekly defaults to start weekday", interval: "@weekly", want: "30 9 * * 1"},
		{name: "weekly explicit days", interval: "@weekly", weekdays: []int{1, 3, 5}, want: "30 9 * * 1,3,5"},
		{name: "weekly sunday maps to zero", interval: "@weekly", weekdays: []int{7}, want: "30 9 * * 0"},
		{name: "weekly dedup and sort", interval: "@weekly", weekdays: []int{5, 5, 1}, want: "30 9 * * 1,5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := schedule.Expand(tt.interval, start, tt.weekdays)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandLiteralCron(t *testing.T) {
	got, err := schedule.Expand("*/15 2 * * *", start, nil)
	require.NoError(t, err)
	assert.Equal(t, "*/15 2 * * *", got)
}

func TestExpandRejectsBadInput(t *testing.T) {
	_, err := schedule.Expand("@weekly", start, []int{0})
	assert.ErrorIs(t, err, schedule.ErrInvalidSchedule)

	_, err = schedule.Expand("@weekly", start, []int{8})
	assert.ErrorIs(t, err, schedule.ErrInvalidSchedule)

	_, err = schedule.Expand("not a cron", start, nil)
	assert.ErrorIs(t, err, schedule.ErrInvalidSchedule)
}

func TestValid(t *testing.T) {
	assert.NoError(t, schedule.Valid("5 4 * * *"))
	assert.ErrorIs(t, schedule.Valid("61 * * * *"), schedule.ErrInvalidSchedule)
	// 6-field (with seconds) expressions are not accepted.
	assert.ErrorIs(t, schedule.Valid("0 5 4 * * *"), schedule.ErrInvalidSchedule)
}

func TestNextIsStrictlyAfter(t *testing.T) {
	// A timestamp that itself matches the expression must not be
	// returned as its own next fire.
	at := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	next, err := schedule.Next("30 9 * * *", at)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 3, 9, 30, 0, 0, time.UTC), next)

	// Stepping back one second makes the matching instant the next fire.
	next, err = schedule.Next("30 9 * * *", at.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, at, next)
}

func TestPresetMatchesExpandedFires(t *testing.T) {
	expanded, err := schedule.Expand("@weekly", start, []int{7})
	require.NoError(t, err)

	next, err := schedule.Next(expanded, start)
	require.NoError(t, err)
	// First Sunday 09:30 after Monday 2025-06-02.
	assert.Equal(t, time.Date(2025, 6, 8, 9, 30, 0, 0, time.UTC), next)
}
