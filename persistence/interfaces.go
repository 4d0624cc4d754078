// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package persistence

import (
	"context"
	"time"

	"github.com/flowqio/flowq/persistence/data_models"
)

// TaskStore is the durable state behind the scheduler engine. All methods
// are safe for concurrent use across goroutines and across processes; the
// multi-step operations run in short transactions so that every invariant
// is enforced by the database, never by in-process state.
type TaskStore interface {
	// CreateTask inserts a CREATED task and upserts its group (including the
	// group's max concurrency) in one transaction
	CreateTask(ctx context.Context, request data_models.CreateTaskRequest) (*data_models.Task, error)

	// DequeueTasks moves up to limit CREATED tasks of the group to STARTED,
	// FIFO by creation time, never exceeding the group's max concurrency
	// counted transactionally at dequeue time. Disjoint result sets are
	// guaranteed across concurrent callers.
	DequeueTasks(ctx context.Context, groupKey string, limit int) ([]data_models.Task, error)

	// GetTask returns nil, nil when the task does not exist
	GetTask(ctx context.Context, taskId string) (*data_models.Task, error)

	SearchTasks(ctx context.Context, request data_models.TaskSearchRequest) ([]data_models.Task, error)

	// TransitionTask applies a guarded state change and returns the updated
	// task, or nil, nil when the task is missing or not in a FromState
	TransitionTask(ctx context.Context, request data_models.TransitionTaskRequest) (*data_models.Task, error)

	// HeartbeatTask refreshes last_heartbeat_at; false means the task is not
	// currently STARTED
	HeartbeatTask(ctx context.Context, taskId string) (bool, error)

	// ExpireTimedOutTasks moves tasks that blew any of their three timeout
	// windows to EXPIRED and returns them so callers can fan out aborts
	ExpireTimedOutTasks(ctx context.Context, now time.Time, limit int) ([]data_models.Task, error)

	// DeleteTerminatedTasksBefore purges terminal tasks older than cutoff,
	// keeping the latest task of each schedule regardless of age
	DeleteTerminatedTasksBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)

	GetGroup(ctx context.Context, groupKey string) (*data_models.Group, error)

	// DeleteIdleGroups hard-deletes groups with no task added since cutoff
	DeleteIdleGroups(ctx context.Context, cutoff time.Time, limit int) (int64, error)

	// UpsertSchedule registers or replaces a schedule by name
	UpsertSchedule(ctx context.Context, request data_models.UpsertScheduleRequest) (*data_models.Schedule, error)

	// GetSchedule returns nil, nil when the schedule does not exist
	GetSchedule(ctx context.Context, scheduleId string) (*data_models.Schedule, error)

	// TransitionSchedule applies a guarded schedule state change; nil, nil
	// when missing or not in a FromState
	TransitionSchedule(
		ctx context.Context, scheduleId string,
		fromStates []data_models.ScheduleState, toState data_models.ScheduleState,
	) (*data_models.Schedule, error)

	// TickDueSchedules creates the next task for every due STARTED schedule
	// and advances each schedule's next due time past now, all in one
	// transaction. SKIP LOCKED makes concurrent tickers fire disjoint
	// schedules. The created tasks are returned for event publication.
	TickDueSchedules(ctx context.Context, now time.Time, limit int) ([]data_models.Task, error)

	// DeleteSchedulesRemovedBefore purges DELETED schedules past retention
	DeleteSchedulesRemovedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)

	Close() error
}

// LeaseStore backs leader election with a single lease row per leader key
type LeaseStore interface {
	// Elect attempts to take or renew the lease; nil, nil means another
	// node holds an unexpired lease
	Elect(ctx context.Context, leaderKey, nodeId string, ttl time.Duration) (*data_models.Lease, error)

	// Release expires our own lease immediately so a peer can take over
	// without waiting out the ttl
	Release(ctx context.Context, leaderKey, nodeId string) error

	Close() error
}
