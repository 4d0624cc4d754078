// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"fmt"

	"github.com/flowqio/flowq/persistence/data_models"
)

var ErrTaskNotFound = errors.New("task not found")
var ErrScheduleNotFound = errors.New("schedule not found")

// ErrTaskNotRunning is returned by heartbeat when the task exists but is not
// in STARTED state
var ErrTaskNotRunning = errors.New("task is not running")

// ValidationError rejects a request before any state is touched
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidTaskTransitionError is returned when a requested transition loses
// to the state guard: the task exists but its current state does not allow
// the move
type InvalidTaskTransitionError struct {
	TaskId       string
	CurrentState data_models.TaskState
	ToState      data_models.TaskState
}

func (e *InvalidTaskTransitionError) Error() string {
	return fmt.Sprintf("task %s cannot transition from %s to %s", e.TaskId, e.CurrentState, e.ToState)
}

type InvalidScheduleTransitionError struct {
	ScheduleId   string
	CurrentState data_models.ScheduleState
	ToState      data_models.ScheduleState
}

func (e *InvalidScheduleTransitionError) Error() string {
	return fmt.Sprintf("schedule %s cannot transition from %s to %s", e.ScheduleId, e.CurrentState, e.ToState)
}
