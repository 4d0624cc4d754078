// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package extensions

import (
	"context"
	"database/sql"
	"time"

	"github.com/flowqio/flowq/config"
)

type SQLDBExtension interface {
	// StartDBSession starts the session for regular business logic
	StartDBSession(cfg *config.SQL) (SQLDBSession, error)
	// StartAdminDBSession starts the session for admin operation like DDL
	StartAdminDBSession(cfg *config.SQL) (SQLAdminDBSession, error)
}

type SQLDBSession interface {
	taskNonTxnCRUD
	groupNonTxnCRUD
	scheduleNonTxnCRUD
	leaseCRUD
	ErrorChecker

	StartTransaction(ctx context.Context, opts *sql.TxOptions) (SQLTransaction, error)
	Close() error
}

type SQLTransaction interface {
	taskTxnCRUD
	groupTxnCRUD
	scheduleTxnCRUD
	Commit() error
	Rollback() error
}

type SQLAdminDBSession interface {
	CreateDatabase(ctx context.Context, database string) error
	DropDatabase(ctx context.Context, database string) error
	ExecuteSchemaDDL(ctx context.Context, ddlQuery string) error
	Close() error
}

type taskTxnCRUD interface {
	InsertTask(ctx context.Context, row TaskRow) error
	// SelectCreatedTasksForUpdateSkipLocked picks up to limit CREATED tasks of
	// the group in FIFO order, skipping rows already locked by concurrent
	// dequeuers so two callers never claim the same task.
	SelectCreatedTasksForUpdateSkipLocked(ctx context.Context, groupKey string, limit int) ([]TaskRow, error)
	// CountStartedTasks counts tasks of the group currently in STARTED state.
	// It is always derived from the task table inside the claiming transaction,
	// never cached, so the concurrency cap cannot drift.
	CountStartedTasks(ctx context.Context, groupKey string) (int, error)
	UpdateTasksToStarted(ctx context.Context, taskIds []string, now time.Time) ([]TaskRow, error)
}

type taskNonTxnCRUD interface {
	SelectTask(ctx context.Context, taskId string) (*TaskRow, error)
	SelectTasks(ctx context.Context, filter TaskSelectFilter) ([]TaskRow, error)
	// UpdateTaskHeartbeat renews last_heartbeat_at iff the task is still
	// STARTED; returns the number of rows updated.
	UpdateTaskHeartbeat(ctx context.Context, taskId string, now time.Time) (int64, error)
	// UpdateTaskStateIfIn moves the task to a terminal state only when its
	// current state is one of fromStates, so the loser of a concurrent
	// transition race observes zero rows. First writer wins.
	UpdateTaskStateIfIn(ctx context.Context, update TaskStateUpdate) (*TaskRow, error)
	// ExpireTimedOutTasks expires CREATED/STARTED tasks whose configured
	// timeout has elapsed, in a single guarded statement, and returns them.
	ExpireTimedOutTasks(ctx context.Context, now time.Time, limit int) ([]TaskRow, error)
	// DeleteTerminatedTasksBefore hard-deletes terminated tasks whose last
	// transition is older than cutoff, except a task that is still some
	// schedule's last_scheduled_task_id.
	DeleteTerminatedTasksBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type groupTxnCRUD interface {
	// UpsertGroup inserts the group or refreshes max_concurrency and
	// last_task_added_at of an existing one.
	UpsertGroup(ctx context.Context, row GroupRow) error
	// SelectGroupForUpdate locks the group row for the duration of the
	// transaction, serializing concurrency-cap checks per group.
	SelectGroupForUpdate(ctx context.Context, groupKey string) (*GroupRow, error)
}

type groupNonTxnCRUD interface {
	SelectGroup(ctx context.Context, groupKey string) (*GroupRow, error)
	// DeleteIdleGroups hard-deletes groups unused for longer than the idle
	// window, bounded by limit per call.
	DeleteIdleGroups(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type scheduleTxnCRUD interface {
	// SelectDueSchedulesForUpdateSkipLocked picks schedules whose next fire
	// time has passed, locked so a tick in another transaction skips them.
	SelectDueSchedulesForUpdateSkipLocked(ctx context.Context, now time.Time, limit int) ([]ScheduleRow, error)
	// UpdateScheduleAfterTick advances next_due_at and last_scheduled_task_id
	// after the tick created the next task.
	UpdateScheduleAfterTick(ctx context.Context, scheduleId string, nextDueAt time.Time, lastScheduledTaskId string, now time.Time) error
}

type scheduleNonTxnCRUD interface {
	// UpsertScheduleByName inserts the schedule, or replaces the mutable
	// fields of an existing schedule with the same name.
	UpsertScheduleByName(ctx context.Context, row ScheduleRow) (*ScheduleRow, error)
	SelectSchedule(ctx context.Context, scheduleId string) (*ScheduleRow, error)
	// UpdateScheduleStateIfIn transitions the schedule state only when its
	// current state is one of fromStates; returns zero rows for the loser.
	UpdateScheduleStateIfIn(ctx context.Context, scheduleId string, fromStates []string, toState string, now time.Time) (*ScheduleRow, error)
	// DeleteSchedulesRemovedBefore hard-deletes DELETED schedules whose
	// deleted_at is older than cutoff, bounded by limit per call.
	DeleteSchedulesRemovedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type leaseCRUD interface {
	// ElectLease atomically takes or renews the lease in a single statement:
	// it succeeds when there is no row, the row is expired, or the row is
	// already held by nodeId. Returns nil when another node holds an
	// unexpired lease.
	ElectLease(ctx context.Context, leaderKey string, nodeId string, expiresAt time.Time, now time.Time) (*LeaseRow, error)
	// ReleaseLease expires the lease immediately, only if held by nodeId.
	ReleaseLease(ctx context.Context, leaderKey string, nodeId string, now time.Time) error
}

type ErrorChecker interface {
	IsDupEntryError(err error) bool
	IsNotFoundError(err error) bool
	IsTimeoutError(err error) bool
	IsThrottlingError(err error) bool
}
