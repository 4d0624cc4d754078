// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package data_models

import (
	"encoding/json"
	"time"
)

type TaskState string

const (
	TaskStateCreated   TaskState = "CREATED"
	TaskStateStarted   TaskState = "STARTED"
	TaskStateSucceeded TaskState = "SUCCEEDED"
	TaskStateFailed    TaskState = "FAILED"
	TaskStateExpired   TaskState = "EXPIRED"
	TaskStateCancelled TaskState = "CANCELLED"
)

// IsTerminal reports whether no further transition can leave the state
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateSucceeded, TaskStateFailed, TaskStateExpired, TaskStateCancelled:
		return true
	}
	return false
}

// TimeoutSettings are the three liveness windows of a task, in seconds.
// Heartbeat applies only after the first heartbeat is received.
type TimeoutSettings struct {
	CreatedToStartedSecs   int `json:"createdToStartedSecs"`
	StartedToCompletedSecs int `json:"startedToCompletedSecs"`
	HeartbeatSecs          int `json:"heartbeatSecs"`
}

type Task struct {
	Id       string          `json:"id"`
	Name     string          `json:"name"`
	GroupKey string          `json:"groupKey"`
	Tenant   string          `json:"tenant"`
	TaskType string          `json:"taskType"`
	Payload  json.RawMessage `json:"payload,omitempty"`

	State TaskState `json:"state"`
	// Output is non-nil only on SUCCEEDED, Error only on FAILED
	Output json.RawMessage `json:"output,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`

	RetryCount int `json:"retryCount"`
	RetryMax   int `json:"retryMax"`

	Timeouts TimeoutSettings `json:"timeouts"`

	CreatedAt             time.Time  `json:"createdAt"`
	StartedAt             *time.Time `json:"startedAt,omitempty"`
	LastHeartbeatAt       *time.Time `json:"lastHeartbeatAt,omitempty"`
	LastStateTransitionAt time.Time  `json:"lastStateTransitionAt"`
	TerminatedAt          *time.Time `json:"terminatedAt,omitempty"`

	ScheduleId *string `json:"scheduleId,omitempty"`
}

// CreateTaskRequest creates one task and upserts its group in the same
// transaction
type CreateTaskRequest struct {
	Name                string
	GroupKey            string
	GroupMaxConcurrency int
	Tenant              string
	TaskType            string
	Payload             json.RawMessage
	// RetryCount is zero for fresh tasks and predecessor+1 for retries
	RetryCount int
	RetryMax   int
	Timeouts   TimeoutSettings
	ScheduleId *string
}

// TransitionTaskRequest is a guarded state write: the update applies only
// when the current state is one of FromStates
type TransitionTaskRequest struct {
	TaskId     string
	FromStates []TaskState
	ToState    TaskState
	Output     json.RawMessage
	Error      json.RawMessage
}

type TaskSearchRequest struct {
	TaskIds    []string
	GroupKey   string
	Tenant     string
	States     []TaskState
	ScheduleId string
	Limit      int
}
