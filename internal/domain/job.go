// Package domain provides domain models used across the application.
package domain

import (
	"time"
	"unicode/utf8"
)

// Operator identifies how a job's command is executed.
type Operator string

// Supported operators.
const (
	OperatorBash   Operator = "bash"
	OperatorSQL    Operator = "sql"
	OperatorPython Operator = "python"
)

// Valid reports whether the operator is a known value.
func (o Operator) Valid() bool {
	switch o {
	case OperatorBash, OperatorSQL, OperatorPython:
		return true
	default:
		return false
	}
}

// JobStatus is the health of a job as derived from its latest terminal task.
type JobStatus int

// Job status values. The numeric values are part of the stored contract.
const (
	StatusFail    JobStatus = 0
	StatusSuccess JobStatus = 1
	StatusUnknown JobStatus = 2
)

// String returns the human-readable status name.
func (s JobStatus) String() string {
	switch s {
	case StatusFail:
		return "fail"
	case StatusSuccess:
		return "success"
	case StatusUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// shortCommandMax is the display length limit for truncated commands.
const shortCommandMax = 57

// Job represents a recurring unit of work.
//
// All wall-clock fields (StartDT, EndDT, NextRunTS, LastExecutionTS) are
// naive timestamps in the job's configured Timezone. BlockTill is a naive
// UTC timestamp. Conversion between the two happens only at the
// scheduler's due-check.
type Job struct {
	ID       int64    `db:"id"            json:"id"`
	Name     string   `db:"name"          json:"name"`
	Timezone string   `db:"timezone"      json:"timezone"`
	Operator Operator `db:"operator"      json:"operator"`
	Database string   `db:"database_name" json:"database,omitempty"`
	Command  string   `db:"command"       json:"command"`

	StartDT          time.Time  `db:"start_dt"          json:"start_dt"`
	EndDT            *time.Time `db:"end_dt"            json:"end_dt,omitempty"`
	ScheduleInterval string     `db:"schedule_interval" json:"schedule_interval"`
	NextRunTS        time.Time  `db:"next_run_ts"       json:"next_run_ts"`

	// ResetStatusMinutes is the local time-of-day, in minutes after
	// midnight, at which Status rolls back to StatusUnknown each day.
	ResetStatusMinutes int `db:"reset_status_minutes" json:"reset_status_minutes"`

	Active    bool       `db:"active"     json:"active"`
	BlockTill *time.Time `db:"block_till" json:"block_till,omitempty"`
	BlockBy   string     `db:"block_by"   json:"block_by,omitempty"`
	BlockMsg  string     `db:"block_msg"  json:"block_msg,omitempty"`

	Status          JobStatus  `db:"status"            json:"status"`
	LastExecutionTS *time.Time `db:"last_execution_ts" json:"last_execution_ts,omitempty"`
	LastTaskResult  string     `db:"last_task_result"  json:"last_task_result,omitempty"`

	UpdateTime time.Time `db:"update_time" json:"update_time"`
}

// Blocked reports whether the job is blocked at the given UTC instant.
func (j *Job) Blocked(nowUTC time.Time) bool {
	return j.BlockTill != nil && nowUTC.Before(*j.BlockTill)
}

// ClearBlock removes the block fields and reactivates the job.
func (j *Job) ClearBlock() {
	j.Active = true
	j.BlockTill = nil
	j.BlockBy = ""
	j.BlockMsg = ""
}

// ShortCommand returns the command truncated for display, cut on a
// rune boundary.
func (j *Job) ShortCommand() string {
	if len(j.Command) <= shortCommandMax {
		return j.Command
	}
	return j.Command[:truncationPoint(j.Command, shortCommandMax)] + "..."
}

// truncationPoint returns the largest cut index not above max that
// does not split a multi-byte rune.
func truncationPoint(s string, max int) int {
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return cut
}

// ResetPointOn returns the status-reset instant on the day of the given
// local timestamp.
func (j *Job) ResetPointOn(nowLocal time.Time) time.Time {
	midnight := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), 0, 0, 0, 0, nowLocal.Location())
	return midnight.Add(time.Duration(j.ResetStatusMinutes) * time.Minute)
}

// SuccessPredicate decides whether a terminal task result counts as a
// success for job status promotion.
type SuccessPredicate func(result string) bool

// DefaultSuccessPredicate preserves the site convention: a result is a
// success iff it begins with the character "1".
func DefaultSuccessPredicate(result string) bool {
	return len(result) > 0 && result[0] == '1'
}
