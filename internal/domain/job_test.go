package domain_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/godash/internal/domain"
)

func TestShortCommand(t *testing.T) {
	short := &domain.Job{Command: "echo 1"}
	assert.Equal(t, "echo 1", short.ShortCommand())

	long := &domain.Job{Command: strings.Repeat("x", 80)}
	assert.Equal(t, strings.Repeat("x", 57)+"...", long.ShortCommand())
}

func TestShortCommandKeepsRunesWhole(t *testing.T) {
	// A three-byte rune straddles the cut point.
	job := &domain.Job{Command: strings.Repeat("x", 56) + "日本語"}

	got := job.ShortCommand()
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("x", 56)+"...", got)
}

func TestTruncateResult(t *testing.T) {
	assert.Equal(t, "1 - ok", domain.TruncateResult("1 - ok"))

	long := strings.Repeat("y", 1500)
	assert.Len(t, domain.TruncateResult(long), 1000)
}

func TestTruncateResultKeepsRunesWhole(t *testing.T) {
	// The one-byte prefix puts a two-byte rune across the 1000 byte cap.
	long := "a" + strings.Repeat("é", 700)

	got := domain.TruncateResult(long)
	assert.True(t, utf8.ValidString(got))
	assert.Len(t, got, 999)
}

func TestJobBlocked(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	job := &domain.Job{}
	assert.False(t, job.Blocked(now))

	future := now.Add(time.Hour)
	job.BlockTill = &future
	assert.True(t, job.Blocked(now))

	assert.False(t, job.Blocked(future))
}
