// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/common/metrics"
	"github.com/flowqio/flowq/events"
	"github.com/flowqio/flowq/persistence"
	"github.com/flowqio/flowq/persistence/data_models"
)

const (
	DefaultGroupMaxConcurrency = 1

	DefaultCreatedToStartedTimeoutSecs   = 3600
	DefaultStartedToCompletedTimeoutSecs = 3600
	DefaultHeartbeatTimeoutSecs          = 600

	DefaultDequeueLimit = 1
	MaxDequeueLimit     = 100
)

type schedulerImpl struct {
	store  persistence.TaskStore
	bus    events.Bus
	logger log.Logger
}

func NewScheduler(store persistence.TaskStore, bus events.Bus, logger log.Logger) Scheduler {
	return &schedulerImpl{
		store:  store,
		bus:    bus,
		logger: logger,
	}
}

func (s schedulerImpl) CreateTask(
	ctx context.Context, request data_models.CreateTaskRequest,
) (*data_models.Task, error) {
	err := validateCreateTask(&request)
	if err != nil {
		return nil, err
	}
	task, err := s.store.CreateTask(ctx, request)
	if err != nil {
		return nil, err
	}
	s.publishCreated(*task)
	return task, nil
}

func (s schedulerImpl) DequeueTasks(
	ctx context.Context, groupKey string, limit int,
) ([]data_models.Task, error) {
	if groupKey == "" {
		return nil, NewValidationError("groupKey is required")
	}
	if limit <= 0 {
		limit = DefaultDequeueLimit
	}
	if limit > MaxDequeueLimit {
		limit = MaxDequeueLimit
	}

	start := time.Now()
	tasks, err := s.store.DequeueTasks(ctx, groupKey, limit)
	if err != nil {
		return nil, err
	}
	metrics.DequeueLatency.Observe(time.Since(start).Seconds())
	metrics.TasksDequeued.Add(float64(len(tasks)))

	for _, task := range tasks {
		s.bus.Publish(events.Event{
			Name:   events.TaskStartedEvent(task.GroupKey),
			TaskId: task.Id,
		})
	}
	return tasks, nil
}

func (s schedulerImpl) GetTask(ctx context.Context, taskId string) (*data_models.Task, error) {
	task, err := s.store.GetTask(ctx, taskId)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s schedulerImpl) SearchTasks(
	ctx context.Context, request data_models.TaskSearchRequest,
) ([]data_models.Task, error) {
	return s.store.SearchTasks(ctx, request)
}

func (s schedulerImpl) HeartbeatTask(ctx context.Context, taskId string) error {
	renewed, err := s.store.HeartbeatTask(ctx, taskId)
	if err != nil {
		return err
	}
	if renewed {
		return nil
	}
	task, err := s.store.GetTask(ctx, taskId)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrTaskNotFound
	}
	return ErrTaskNotRunning
}

func (s schedulerImpl) SucceedTask(
	ctx context.Context, taskId string, output json.RawMessage,
) (*data_models.Task, error) {
	// a SUCCEEDED task always carries an output, an omitted one is JSON null
	if output == nil {
		output = json.RawMessage("null")
	}
	task, err := s.store.TransitionTask(ctx, data_models.TransitionTaskRequest{
		TaskId:     taskId,
		FromStates: []data_models.TaskState{data_models.TaskStateStarted},
		ToState:    data_models.TaskStateSucceeded,
		Output:     output,
	})
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, s.resolveTaskTransitionFailure(ctx, taskId, data_models.TaskStateSucceeded)
	}
	s.publishTerminated(*task)
	return task, nil
}

func (s schedulerImpl) FailTask(
	ctx context.Context, taskId string, taskError json.RawMessage,
) (*data_models.Task, *data_models.Task, error) {
	// a FAILED task always carries an error, an omitted one is JSON null
	if taskError == nil {
		taskError = json.RawMessage("null")
	}
	task, err := s.store.TransitionTask(ctx, data_models.TransitionTaskRequest{
		TaskId:     taskId,
		FromStates: []data_models.TaskState{data_models.TaskStateStarted},
		ToState:    data_models.TaskStateFailed,
		Error:      taskError,
	})
	if err != nil {
		return nil, nil, err
	}
	if task == nil {
		return nil, nil, s.resolveTaskTransitionFailure(ctx, taskId, data_models.TaskStateFailed)
	}
	s.publishTerminated(*task)

	retryTask := s.maybeSpawnRetry(ctx, *task)
	return task, retryTask, nil
}

func (s schedulerImpl) CancelTask(ctx context.Context, taskId string) (*data_models.Task, error) {
	task, err := s.store.TransitionTask(ctx, data_models.TransitionTaskRequest{
		TaskId: taskId,
		FromStates: []data_models.TaskState{
			data_models.TaskStateCreated, data_models.TaskStateStarted,
		},
		ToState: data_models.TaskStateCancelled,
	})
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, s.resolveTaskTransitionFailure(ctx, taskId, data_models.TaskStateCancelled)
	}
	s.publishTerminated(*task)
	return task, nil
}

// maybeSpawnRetry clones the failed task with retryCount+1 when the retry
// budget allows. A failed spawn is logged but never fails the transition
// that triggered it: the caller's fail call already committed.
func (s schedulerImpl) maybeSpawnRetry(ctx context.Context, task data_models.Task) *data_models.Task {
	if task.RetryCount >= task.RetryMax {
		return nil
	}

	groupMaxConcurrency := DefaultGroupMaxConcurrency
	group, err := s.store.GetGroup(ctx, task.GroupKey)
	if err != nil {
		s.logger.Error("failed to load group for retry task",
			tag.Error(err), tag.TaskId(task.Id), tag.GroupKey(task.GroupKey))
	} else if group != nil {
		groupMaxConcurrency = group.MaxConcurrency
	}

	retryTask, err := s.store.CreateTask(ctx, data_models.CreateTaskRequest{
		Name:                task.Name,
		GroupKey:            task.GroupKey,
		GroupMaxConcurrency: groupMaxConcurrency,
		Tenant:              task.Tenant,
		TaskType:            task.TaskType,
		Payload:             task.Payload,
		RetryCount:          task.RetryCount + 1,
		RetryMax:            task.RetryMax,
		Timeouts:            task.Timeouts,
		ScheduleId:          task.ScheduleId,
	})
	if err != nil {
		s.logger.Error("failed to spawn retry task",
			tag.Error(err), tag.TaskId(task.Id), tag.RetryCount(task.RetryCount+1))
		return nil
	}

	metrics.TasksRetried.Inc()
	s.logger.Info("spawned retry task",
		tag.TaskId(retryTask.Id), tag.TaskName(retryTask.Name), tag.RetryCount(retryTask.RetryCount))
	s.publishCreated(*retryTask)
	return retryTask
}

func (s schedulerImpl) publishCreated(task data_models.Task) {
	metrics.TasksCreated.WithLabelValues(task.TaskType).Inc()
	s.bus.Publish(events.Event{
		Name:   events.TaskCreatedEvent(task.GroupKey),
		TaskId: task.Id,
	})
}

func (s schedulerImpl) publishTerminated(task data_models.Task) {
	metrics.TasksTerminated.WithLabelValues(string(task.State)).Inc()
	s.bus.Publish(events.Event{
		Name:   events.TaskCompletedEvent(task.Id),
		TaskId: task.Id,
	})
}

func (s schedulerImpl) resolveTaskTransitionFailure(
	ctx context.Context, taskId string, toState data_models.TaskState,
) error {
	task, err := s.store.GetTask(ctx, taskId)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrTaskNotFound
	}
	return &InvalidTaskTransitionError{
		TaskId:       taskId,
		CurrentState: task.State,
		ToState:      toState,
	}
}

func validateCreateTask(request *data_models.CreateTaskRequest) error {
	if request.Name == "" {
		return NewValidationError("name is required")
	}
	if request.GroupKey == "" {
		return NewValidationError("groupKey is required")
	}
	if request.GroupMaxConcurrency < 0 {
		return NewValidationError("groupMaxConcurrency must not be negative")
	}
	if request.GroupMaxConcurrency == 0 {
		request.GroupMaxConcurrency = DefaultGroupMaxConcurrency
	}
	if request.RetryMax < 0 {
		return NewValidationError("retryMax must not be negative")
	}
	if request.RetryCount < 0 {
		return NewValidationError("retryCount must not be negative")
	}
	return validateTimeouts(&request.Timeouts)
}

func validateTimeouts(timeouts *data_models.TimeoutSettings) error {
	if timeouts.CreatedToStartedSecs < 0 ||
		timeouts.StartedToCompletedSecs < 0 ||
		timeouts.HeartbeatSecs < 0 {
		return NewValidationError("timeouts must not be negative")
	}
	if timeouts.CreatedToStartedSecs == 0 {
		timeouts.CreatedToStartedSecs = DefaultCreatedToStartedTimeoutSecs
	}
	if timeouts.StartedToCompletedSecs == 0 {
		timeouts.StartedToCompletedSecs = DefaultStartedToCompletedTimeoutSecs
	}
	if timeouts.HeartbeatSecs == 0 {
		timeouts.HeartbeatSecs = DefaultHeartbeatTimeoutSecs
	}
	return nil
}
