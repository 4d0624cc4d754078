// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/config"
	"github.com/flowqio/flowq/engine"
	"github.com/flowqio/flowq/events"
	"github.com/flowqio/flowq/persistence/data_models"
	"github.com/flowqio/flowq/runner"
)

type serviceImpl struct {
	cfg       config.Config
	scheduler engine.Scheduler
	bus       events.Bus
	registry  runner.Registry
	aborts    engine.AbortNotifier
	logger    log.Logger
}

func NewServiceImpl(
	cfg config.Config, scheduler engine.Scheduler, bus events.Bus,
	registry runner.Registry, aborts engine.AbortNotifier, logger log.Logger,
) Service {
	return &serviceImpl{
		cfg:       cfg,
		scheduler: scheduler,
		bus:       bus,
		registry:  registry,
		aborts:    aborts,
		logger:    logger,
	}
}

func (s serviceImpl) CreateTask(
	ctx context.Context, request CreateTaskRequest,
) (*CreateTaskResponse, *ErrorWithStatus) {
	task, err := s.scheduler.CreateTask(ctx, data_models.CreateTaskRequest{
		Name:                request.Name,
		GroupKey:            request.GroupKey,
		GroupMaxConcurrency: request.GroupMaxConcurrency,
		Tenant:              request.Tenant,
		TaskType:            request.TaskType,
		Payload:             request.Payload,
		RetryMax:            request.RetryMax,
		Timeouts:            request.Timeouts,
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &CreateTaskResponse{TaskId: task.Id}, nil
}

func (s serviceImpl) UpsertSchedule(
	ctx context.Context, request UpsertScheduleRequest,
) (*UpsertScheduleResponse, *ErrorWithStatus) {
	storeRequest := data_models.UpsertScheduleRequest{
		Name:                request.Name,
		GroupKey:            request.GroupKey,
		GroupMaxConcurrency: request.GroupMaxConcurrency,
		Tenant:              request.Tenant,
		TaskType:            request.TaskType,
		Payload:             request.Payload,
		State:               request.State,
		RetryMax:            request.RetryMax,
		Timeouts:            request.Timeouts,
		Frequency:           time.Duration(request.FrequencyMs) * time.Millisecond,
	}
	if request.StartsAt != nil {
		storeRequest.StartsAt = *request.StartsAt
	}
	schedule, err := s.scheduler.UpsertSchedule(ctx, storeRequest)
	if err != nil {
		return nil, s.mapError(err)
	}
	return &UpsertScheduleResponse{ScheduleId: schedule.Id}, nil
}

func (s serviceImpl) GetSchedule(
	ctx context.Context, scheduleId string,
) (*data_models.Schedule, *ErrorWithStatus) {
	schedule, err := s.scheduler.GetSchedule(ctx, scheduleId)
	if err != nil {
		return nil, s.mapError(err)
	}
	return schedule, nil
}

func (s serviceImpl) UpdateScheduleState(
	ctx context.Context, scheduleId string, request UpdateScheduleStateRequest,
) (*data_models.Schedule, *ErrorWithStatus) {
	var schedule *data_models.Schedule
	var err error
	switch request.State {
	case data_models.ScheduleStatePaused:
		schedule, err = s.scheduler.PauseSchedule(ctx, scheduleId)
	case data_models.ScheduleStateStarted:
		schedule, err = s.scheduler.ResumeSchedule(ctx, scheduleId)
	case data_models.ScheduleStateDeleted:
		schedule, err = s.scheduler.DeleteSchedule(ctx, scheduleId)
	default:
		return nil, NewErrorWithStatus(http.StatusBadRequest, ErrCodeValidationError,
			"state must be one of STARTED, PAUSED, DELETED")
	}
	if err != nil {
		return nil, s.mapError(err)
	}
	return schedule, nil
}

func (s serviceImpl) Dequeue(
	ctx context.Context, groupKey string, limit int, wait time.Duration,
) (*DequeueResponse, *ErrorWithStatus) {
	if wait <= 0 {
		tasks, err := s.scheduler.DequeueTasks(ctx, groupKey, limit)
		if err != nil {
			return nil, s.mapDequeueError(err)
		}
		return &DequeueResponse{Tasks: tasks}, nil
	}

	// subscribe before the first attempt so a task created while the initial
	// dequeue is in flight still wakes this poll; the event is only a
	// wake-up, the store stays authoritative
	eventCh, cancel := s.bus.Subscribe(events.TaskCreatedEvent(groupKey))
	defer cancel()

	tasks, err := s.scheduler.DequeueTasks(ctx, groupKey, limit)
	if err != nil {
		return nil, s.mapDequeueError(err)
	}
	if len(tasks) > 0 {
		return &DequeueResponse{Tasks: tasks}, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case <-eventCh:
			tasks, err = s.scheduler.DequeueTasks(ctx, groupKey, limit)
			if err != nil {
				return nil, s.mapDequeueError(err)
			}
			if len(tasks) > 0 {
				return &DequeueResponse{Tasks: tasks}, nil
			}
			// another waiter won the race, keep waiting
		case <-timer.C:
			return s.lastDequeueAttempt(ctx, groupKey, limit)
		case <-ctx.Done():
			return s.lastDequeueAttempt(ctx, groupKey, limit)
		}
	}
}

// lastDequeueAttempt runs once when the poll window closes, so a task whose
// wake-up was dropped is still handed out rather than left in the store.
func (s serviceImpl) lastDequeueAttempt(
	ctx context.Context, groupKey string, limit int,
) (*DequeueResponse, *ErrorWithStatus) {
	tasks, err := s.scheduler.DequeueTasks(ctx, groupKey, limit)
	if err != nil || tasks == nil {
		tasks = []data_models.Task{}
	}
	return &DequeueResponse{Tasks: tasks}, nil
}

func (s serviceImpl) GetTask(
	ctx context.Context, taskId string,
) (*data_models.Task, *ErrorWithStatus) {
	task, err := s.scheduler.GetTask(ctx, taskId)
	if err != nil {
		return nil, s.mapError(err)
	}
	return task, nil
}

func (s serviceImpl) UpdateTask(
	ctx context.Context, taskId string, request UpdateTaskRequest,
) (*data_models.Task, *ErrorWithStatus) {
	var task *data_models.Task
	var err error
	switch request.Action {
	case TaskActionSucceed:
		task, err = s.scheduler.SucceedTask(ctx, taskId, request.Output)
	case TaskActionFail:
		task, _, err = s.scheduler.FailTask(ctx, taskId, request.Error)
	case TaskActionCancel:
		task, err = s.scheduler.CancelTask(ctx, taskId)
	default:
		return nil, NewErrorWithStatus(http.StatusBadRequest, ErrCodeValidationError,
			"action must be one of succeed, fail, cancel")
	}
	if err != nil {
		return nil, s.mapError(err)
	}
	return task, nil
}

func (s serviceImpl) HeartbeatTask(ctx context.Context, taskId string) *ErrorWithStatus {
	err := s.scheduler.HeartbeatTask(ctx, taskId)
	if err != nil {
		// a task that is no longer running reads as gone to its runner:
		// the 404 tells it to stop working
		if errors.Is(err, engine.ErrTaskNotRunning) {
			return NewErrorWithStatus(http.StatusNotFound, ErrCodeTaskNotFound, err.Error())
		}
		return s.mapError(err)
	}
	return nil
}

func (s serviceImpl) GetTaskOutput(
	ctx context.Context, taskId string, wait time.Duration,
) (*TaskOutputResponse, *ErrorWithStatus) {
	// subscribe before the first read so a completion in between is not missed
	eventCh, cancel := s.bus.Subscribe(events.TaskCompletedEvent(taskId))
	defer cancel()

	task, err := s.scheduler.GetTask(ctx, taskId)
	if err != nil {
		return nil, s.mapError(err)
	}
	if task.State.IsTerminal() {
		return taskOutputResponse(task), nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case <-eventCh:
			task, err = s.scheduler.GetTask(ctx, taskId)
			if err != nil {
				return nil, s.mapError(err)
			}
			if task.State.IsTerminal() {
				return taskOutputResponse(task), nil
			}
		case <-timer.C:
			return nil, NewErrorWithStatus(http.StatusRequestTimeout, ErrCodeLongPollingTimeout,
				"task did not complete within the long poll window")
		case <-ctx.Done():
			return nil, NewErrorWithStatus(http.StatusRequestTimeout, ErrCodeLongPollingTimeout,
				"request cancelled while waiting for the task to complete")
		}
	}
}

func (s serviceImpl) SearchTasks(
	ctx context.Context, request SearchTasksRequest,
) (*SearchTasksResponse, *ErrorWithStatus) {
	tasks, err := s.scheduler.SearchTasks(ctx, data_models.TaskSearchRequest{
		TaskIds:    request.Ids,
		GroupKey:   request.GroupKey,
		Tenant:     request.Tenant,
		States:     request.States,
		ScheduleId: request.ScheduleId,
		Limit:      request.Limit,
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	if tasks == nil {
		tasks = []data_models.Task{}
	}
	return &SearchTasksResponse{Tasks: tasks}, nil
}

func (s serviceImpl) AbortTask(
	ctx context.Context, taskId string,
) (*data_models.Task, *ErrorWithStatus) {
	task, err := s.scheduler.CancelTask(ctx, taskId)
	if err != nil {
		return nil, s.mapError(err)
	}

	// fan-out failures don't fail the abort: the task is already CANCELLED
	// and the flag is the runners' backstop
	err = s.aborts.NotifyAbort(ctx, *task)
	if err != nil {
		s.logger.Error("abort fan-out did not reach all runners",
			tag.Error(err), tag.TaskId(taskId), tag.Tenant(task.Tenant))
	}
	return task, nil
}

func (s serviceImpl) RegisterRunner(ctx context.Context, request RegisterRunnerRequest) *ErrorWithStatus {
	err := s.registry.Register(ctx, runner.Registration{
		RunnerId:    request.RunnerId,
		Tenant:      request.Tenant,
		CallbackUrl: request.CallbackUrl,
	})
	if err != nil {
		return NewErrorWithStatus(http.StatusBadRequest, ErrCodeValidationError, err.Error())
	}
	return nil
}

func taskOutputResponse(task *data_models.Task) *TaskOutputResponse {
	return &TaskOutputResponse{
		TaskId: task.Id,
		State:  task.State,
		Output: task.Output,
		Error:  task.Error,
	}
}

func (s serviceImpl) mapError(err error) *ErrorWithStatus {
	var validationErr *engine.ValidationError
	var taskTransitionErr *engine.InvalidTaskTransitionError
	var scheduleTransitionErr *engine.InvalidScheduleTransitionError

	switch {
	case errors.As(err, &validationErr):
		return NewErrorWithStatus(http.StatusBadRequest, ErrCodeValidationError, err.Error())
	case errors.Is(err, engine.ErrTaskNotFound):
		return NewErrorWithStatus(http.StatusNotFound, ErrCodeTaskNotFound, err.Error())
	case errors.Is(err, engine.ErrScheduleNotFound):
		return NewErrorWithStatus(http.StatusNotFound, ErrCodeRecurringFailed, err.Error())
	case errors.As(err, &taskTransitionErr), errors.Is(err, engine.ErrTaskNotRunning):
		return NewErrorWithStatus(http.StatusConflict, ErrCodeInvalidTransition, err.Error())
	case errors.As(err, &scheduleTransitionErr):
		return NewErrorWithStatus(http.StatusConflict, ErrCodeRecurringFailed, err.Error())
	default:
		s.logger.Error("unknown error on operation", tag.Error(err))
		return NewErrorWithStatus(http.StatusInternalServerError, ErrCodeInternalError, err.Error())
	}
}

func (s serviceImpl) mapDequeueError(err error) *ErrorWithStatus {
	var validationErr *engine.ValidationError
	if errors.As(err, &validationErr) {
		return NewErrorWithStatus(http.StatusBadRequest, ErrCodeValidationError, err.Error())
	}
	s.logger.Error("dequeue failed", tag.Error(err))
	return NewErrorWithStatus(http.StatusInternalServerError, ErrCodeDequeueFailed, err.Error())
}
