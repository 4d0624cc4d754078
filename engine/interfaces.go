// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"

	"github.com/flowqio/flowq/persistence/data_models"
)

// Scheduler is the task lifecycle engine. It validates requests, drives
// transitions through the durable store, spawns retries and publishes
// lifecycle events. It holds no task state in memory, so any number of
// Scheduler instances can run against the same database.
type Scheduler interface {
	// CreateTask enqueues a CREATED task and publishes the created event
	// of its group
	CreateTask(ctx context.Context, request data_models.CreateTaskRequest) (*data_models.Task, error)

	// DequeueTasks hands out up to limit tasks of the group, oldest first,
	// respecting the group's max concurrency. An empty result is not an
	// error.
	DequeueTasks(ctx context.Context, groupKey string, limit int) ([]data_models.Task, error)

	GetTask(ctx context.Context, taskId string) (*data_models.Task, error)

	SearchTasks(ctx context.Context, request data_models.TaskSearchRequest) ([]data_models.Task, error)

	// HeartbeatTask renews the heartbeat of a STARTED task
	HeartbeatTask(ctx context.Context, taskId string) error

	// SucceedTask moves a STARTED task to SUCCEEDED with its output
	SucceedTask(ctx context.Context, taskId string, output json.RawMessage) (*data_models.Task, error)

	// FailTask moves a STARTED task to FAILED and, when the retry budget
	// is not exhausted, spawns the retry task with retryCount+1. The
	// returned retry task is nil when no retry was created.
	FailTask(ctx context.Context, taskId string, taskError json.RawMessage) (*data_models.Task, *data_models.Task, error)

	// CancelTask moves a CREATED or STARTED task to CANCELLED
	CancelTask(ctx context.Context, taskId string) (*data_models.Task, error)

	// UpsertSchedule registers a recurring schedule, replacing a previous
	// definition with the same name
	UpsertSchedule(ctx context.Context, request data_models.UpsertScheduleRequest) (*data_models.Schedule, error)

	GetSchedule(ctx context.Context, scheduleId string) (*data_models.Schedule, error)

	PauseSchedule(ctx context.Context, scheduleId string) (*data_models.Schedule, error)

	ResumeSchedule(ctx context.Context, scheduleId string) (*data_models.Schedule, error)

	// DeleteSchedule soft-deletes the schedule; the sweeper hard-deletes
	// it after retention
	DeleteSchedule(ctx context.Context, scheduleId string) (*data_models.Schedule, error)
}
