// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"time"

	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/persistence/data_models"
)

// MinScheduleFrequency bounds how often a schedule may fire; anything
// tighter belongs on a queue, not a calendar
const MinScheduleFrequency = 30 * time.Second

func (s schedulerImpl) UpsertSchedule(
	ctx context.Context, request data_models.UpsertScheduleRequest,
) (*data_models.Schedule, error) {
	err := validateUpsertSchedule(&request)
	if err != nil {
		return nil, err
	}
	schedule, err := s.store.UpsertSchedule(ctx, request)
	if err != nil {
		return nil, err
	}
	s.logger.Info("registered schedule",
		tag.ScheduleId(schedule.Id), tag.TaskName(schedule.Name), tag.GroupKey(schedule.GroupKey))
	return schedule, nil
}

func (s schedulerImpl) GetSchedule(
	ctx context.Context, scheduleId string,
) (*data_models.Schedule, error) {
	schedule, err := s.store.GetSchedule(ctx, scheduleId)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, ErrScheduleNotFound
	}
	return schedule, nil
}

func (s schedulerImpl) PauseSchedule(
	ctx context.Context, scheduleId string,
) (*data_models.Schedule, error) {
	return s.transitionSchedule(ctx, scheduleId,
		[]data_models.ScheduleState{data_models.ScheduleStateStarted},
		data_models.ScheduleStatePaused)
}

func (s schedulerImpl) ResumeSchedule(
	ctx context.Context, scheduleId string,
) (*data_models.Schedule, error) {
	return s.transitionSchedule(ctx, scheduleId,
		[]data_models.ScheduleState{data_models.ScheduleStatePaused},
		data_models.ScheduleStateStarted)
}

func (s schedulerImpl) DeleteSchedule(
	ctx context.Context, scheduleId string,
) (*data_models.Schedule, error) {
	return s.transitionSchedule(ctx, scheduleId,
		[]data_models.ScheduleState{data_models.ScheduleStateStarted, data_models.ScheduleStatePaused},
		data_models.ScheduleStateDeleted)
}

func (s schedulerImpl) transitionSchedule(
	ctx context.Context, scheduleId string,
	fromStates []data_models.ScheduleState, toState data_models.ScheduleState,
) (*data_models.Schedule, error) {
	schedule, err := s.store.TransitionSchedule(ctx, scheduleId, fromStates, toState)
	if err != nil {
		return nil, err
	}
	if schedule != nil {
		return schedule, nil
	}

	current, err := s.store.GetSchedule(ctx, scheduleId)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrScheduleNotFound
	}
	return nil, &InvalidScheduleTransitionError{
		ScheduleId:   scheduleId,
		CurrentState: current.State,
		ToState:      toState,
	}
}

func validateUpsertSchedule(request *data_models.UpsertScheduleRequest) error {
	if request.Name == "" {
		return NewValidationError("name is required")
	}
	if request.GroupKey == "" {
		return NewValidationError("groupKey is required")
	}
	switch request.State {
	case "":
		request.State = data_models.ScheduleStateStarted
	case data_models.ScheduleStateStarted, data_models.ScheduleStatePaused:
	default:
		return NewValidationError("state must be one of STARTED, PAUSED")
	}
	if request.Frequency < MinScheduleFrequency {
		return NewValidationError("frequency must be at least %v", MinScheduleFrequency)
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
	if request.StartsAt.IsZero() {
		request.StartsAt = time.Now().UTC()
	}
	return validateTimeouts(&request.Timeouts)
}
