// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"time"

	"github.com/flowqio/flowq/common/uuid"
	"github.com/flowqio/flowq/extensions"
	"github.com/flowqio/flowq/persistence/data_models"
)

func (p sqlTaskStoreImpl) UpsertSchedule(
	ctx context.Context, request data_models.UpsertScheduleRequest,
) (*data_models.Schedule, error) {
	now := time.Now().UTC()

	// the generated id is discarded when a schedule with the same name
	// already exists; the returned row carries the surviving id
	row, err := p.session.UpsertScheduleByName(ctx, extensions.ScheduleRow{
		Id:                  uuid.MustNewUUID(),
		Name:                request.Name,
		State:               string(request.State),
		GroupKey:            request.GroupKey,
		GroupMaxConcurrency: request.GroupMaxConcurrency,
		Tenant:              request.Tenant,
		TaskType:            request.TaskType,
		Payload:             request.Payload,

		StartsAt:    request.StartsAt,
		FrequencyMs: request.Frequency.Milliseconds(),
		NextDueAt:   request.StartsAt,

		RetryMax:                      request.RetryMax,
		CreatedToStartedTimeoutSecs:   request.Timeouts.CreatedToStartedSecs,
		StartedToCompletedTimeoutSecs: request.Timeouts.StartedToCompletedSecs,
		HeartbeatTimeoutSecs:          request.Timeouts.HeartbeatSecs,

		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	schedule := scheduleFromRow(*row)
	return &schedule, nil
}

func (p sqlTaskStoreImpl) GetSchedule(
	ctx context.Context, scheduleId string,
) (*data_models.Schedule, error) {
	row, err := p.session.SelectSchedule(ctx, scheduleId)
	if err != nil {
		if p.session.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	schedule := scheduleFromRow(*row)
	return &schedule, nil
}

func (p sqlTaskStoreImpl) TransitionSchedule(
	ctx context.Context, scheduleId string,
	fromStates []data_models.ScheduleState, toState data_models.ScheduleState,
) (*data_models.Schedule, error) {
	fromStrs := make([]string, 0, len(fromStates))
	for _, s := range fromStates {
		fromStrs = append(fromStrs, string(s))
	}
	row, err := p.session.UpdateScheduleStateIfIn(ctx, scheduleId, fromStrs, string(toState), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	schedule := scheduleFromRow(*row)
	return &schedule, nil
}

func (p sqlTaskStoreImpl) DeleteSchedulesRemovedBefore(
	ctx context.Context, cutoff time.Time, limit int,
) (int64, error) {
	return p.session.DeleteSchedulesRemovedBefore(ctx, cutoff, limit)
}
