// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"time"

	"github.com/flowqio/flowq/persistence/data_models"
)

type Server interface {
	// Start will start running on the background
	Start() error
	Stop(ctx context.Context) error
}

// Service is the interface of the API service, decoupled from the REST
// server framework like Gin so that other REST frameworks can serve the
// same requests
type Service interface {
	CreateTask(ctx context.Context, request CreateTaskRequest) (
		resp *CreateTaskResponse, err *ErrorWithStatus)
	UpsertSchedule(ctx context.Context, request UpsertScheduleRequest) (
		resp *UpsertScheduleResponse, err *ErrorWithStatus)
	GetSchedule(ctx context.Context, scheduleId string) (
		resp *data_models.Schedule, err *ErrorWithStatus)
	UpdateScheduleState(ctx context.Context, scheduleId string, request UpdateScheduleStateRequest) (
		resp *data_models.Schedule, err *ErrorWithStatus)

	// Dequeue long-polls: an empty group holds the request up to wait and
	// re-tries when a created event of the group fires
	Dequeue(ctx context.Context, groupKey string, limit int, wait time.Duration) (
		resp *DequeueResponse, err *ErrorWithStatus)

	GetTask(ctx context.Context, taskId string) (
		resp *data_models.Task, err *ErrorWithStatus)
	UpdateTask(ctx context.Context, taskId string, request UpdateTaskRequest) (
		resp *data_models.Task, err *ErrorWithStatus)
	HeartbeatTask(ctx context.Context, taskId string) *ErrorWithStatus

	// GetTaskOutput long-polls until the task is terminal or wait elapses;
	// elapsing is a timeout error response, not a hung connection
	GetTaskOutput(ctx context.Context, taskId string, wait time.Duration) (
		resp *TaskOutputResponse, err *ErrorWithStatus)

	SearchTasks(ctx context.Context, request SearchTasksRequest) (
		resp *SearchTasksResponse, err *ErrorWithStatus)

	// AbortTask cancels the task and fans the abort out to the tenant's
	// runners
	AbortTask(ctx context.Context, taskId string) (
		resp *data_models.Task, err *ErrorWithStatus)

	RegisterRunner(ctx context.Context, request RegisterRunnerRequest) *ErrorWithStatus
}
