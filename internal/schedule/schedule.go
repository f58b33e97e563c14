// Package schedule evaluates job schedule intervals as 5-field cron
// expressions.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned for unknown presets, malformed cron
// expressions and out-of-range weekdays.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Preset interval names.
const (
	PresetHourly       = "@hourly"
	PresetDaily        = "@daily"
	PresetWeekly       = "@weekly"
	PresetWeekdayDaily = "@weekdaydaily"
)

// parser accepts the classic 5-field format (minute hour dom month dow).
var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// IsPreset reports whether the interval names a known preset.
func IsPreset(interval string) bool {
	switch interval {
	case PresetHourly, PresetDaily, PresetWeekly, PresetWeekdayDaily:
		return true
	default:
		return false
	}
}

// Expand turns a preset or literal cron interval into a concrete
// expression anchored on the job's start timestamp.
//
// Weekdays are ISO numbered, Monday=1 through Sunday=7. When the
// weekdays slice is non-empty it selects the days-of-week for
// @weekly; otherwise @weekly fires on the start's own weekday.
// A non-preset interval is validated and returned unchanged.
func Expand(interval string, start time.Time, weekdays []int) (string, error) {
	if !IsPreset(interval) {
		if err := Valid(interval); err != nil {
			return "", err
		}
		return interval, nil
	}

	for _, wd := range weekdays {
		if wd < 1 || wd > 7 {
			return "", fmt.Errorf("%w: weekday %d out of range 1-7", ErrInvalidSchedule, wd)
		}
	}

	m := start.Minute()
	h := start.Hour()

	switch interval {
	case PresetHourly:
		return fmt.Sprintf("%d * * * *", m), nil
	case PresetDaily:
		return fmt.Sprintf("%d %d * * *", m, h), nil
	case PresetWeekdayDaily:
		return fmt.Sprintf("%d %d * * 1-5", m, h), nil
	case PresetWeekly:
		days := weekdays
		if len(days) == 0 {
			days = []int{isoWeekday(start)}
		}
		return fmt.Sprintf("%d %d * * %s", m, h, dowField(days)), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSchedule, interval)
}

// Valid checks that expr parses as a 5-field cron expression.
func Valid(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return nil
}

// Next returns the first fire time strictly after the given timestamp.
func Next(expr string, after time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return sched.Next(after), nil
}

// isoWeekday maps time.Weekday to ISO numbering, Monday=1..Sunday=7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// dowField renders ISO weekdays as a cron day-of-week list. The parser
// speaks 0-6 with Sunday as 0, so ISO Sunday (7) maps to 0.
func dowField(days []int) string {
	cronDays := make([]int, 0, len(days))
	seen := make(map[int]bool, len(days))
	for _, d := range days {
		c := d
		if c == 7 {
			c = 0
		}
		if !seen[c] {
			seen[c] = true
			cronDays = append(cronDays, c)
		}
	}
	sort.Ints(cronDays)

	parts := make([]string, len(cronDays))
	for i, d := range cronDays {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}
