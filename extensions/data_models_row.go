// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package extensions

import (
	"database/sql"
	"time"
)

// task states as stored; the typed enum lives in persistence/data_models
const (
	TaskStateCreated   = "CREATED"
	TaskStateStarted   = "STARTED"
	TaskStateSucceeded = "SUCCEEDED"
	TaskStateFailed    = "FAILED"
	TaskStateExpired   = "EXPIRED"
	TaskStateCancelled = "CANCELLED"
)

const (
	ScheduleStateStarted = "STARTED"
	ScheduleStatePaused  = "PAUSED"
	ScheduleStateDeleted = "DELETED"
)

// TaskRow is the flowq_tasks table row.
// Field names map to snake_case columns via the session's MapperFunc.
type TaskRow struct {
	Id       string
	Name     string
	GroupKey string
	Tenant   string
	TaskType string
	Payload  []byte

	State string
	// Output is set on SUCCEEDED, Error on FAILED; both NULL otherwise
	Output []byte
	Error  []byte

	RetryCount int
	RetryMax   int

	CreatedToStartedTimeoutSecs   int
	StartedToCompletedTimeoutSecs int
	HeartbeatTimeoutSecs          int

	CreatedAt             time.Time
	StartedAt             sql.NullTime
	LastHeartbeatAt       sql.NullTime
	LastStateTransitionAt time.Time
	TerminatedAt          sql.NullTime

	ScheduleId sql.NullString
}

// TaskStateUpdate is the guarded terminal transition write
type TaskStateUpdate struct {
	TaskId     string
	FromStates []string
	ToState    string
	// Output or Error is written depending on ToState; nil leaves NULL
	Output []byte
	Error  []byte
	Now    time.Time
}

// TaskSelectFilter is the search query input
type TaskSelectFilter struct {
	TaskIds    []string
	GroupKey   string
	Tenant     string
	States     []string
	ScheduleId string
	Limit      int
}

// GroupRow is the flowq_groups table row
type GroupRow struct {
	GroupKey        string
	MaxConcurrency  int
	LastTaskAddedAt sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ScheduleRow is the flowq_schedules table row
type ScheduleRow struct {
	Id       string
	Name     string
	State    string
	GroupKey string
	// GroupMaxConcurrency is carried on the schedule so the tick can upsert
	// the group of the tasks it creates
	GroupMaxConcurrency int
	Tenant              string
	TaskType            string
	Payload             []byte

	StartsAt    time.Time
	FrequencyMs int64
	// NextDueAt is the next fire time; initialized to starts_at and advanced
	// past now on every tick so a slow leader catches up without creating a
	// burst of tasks
	NextDueAt time.Time

	RetryMax                      int
	CreatedToStartedTimeoutSecs   int
	StartedToCompletedTimeoutSecs int
	HeartbeatTimeoutSecs          int

	LastScheduledTaskId sql.NullString

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt sql.NullTime
}

// LeaseRow is the flowq_leases table row, one row per leaderKey
type LeaseRow struct {
	LeaderKey string
	NodeId    string
	ExpiresAt time.Time
}
