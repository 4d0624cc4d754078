// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"database/sql"
	"time"

	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/common/uuid"
	"github.com/flowqio/flowq/extensions"
	"github.com/flowqio/flowq/persistence/data_models"
)

func (p sqlTaskStoreImpl) TickDueSchedules(
	ctx context.Context, now time.Time, limit int,
) ([]data_models.Task, error) {
	tx, err := p.session.StartTransaction(ctx, defaultTxOpts)
	if err != nil {
		return nil, err
	}

	created, err := p.doTickDueSchedulesTx(ctx, tx, now, limit)
	if err != nil || len(created) == 0 {
		p.rollback(tx)
		return nil, err
	}

	err = tx.Commit()
	if err != nil {
		p.logger.Error("error on committing transaction", tag.Error(err))
		return nil, err
	}
	return created, nil
}

func (p sqlTaskStoreImpl) doTickDueSchedulesTx(
	ctx context.Context, tx extensions.SQLTransaction, now time.Time, limit int,
) ([]data_models.Task, error) {
	dueRows, err := tx.SelectDueSchedulesForUpdateSkipLocked(ctx, now, limit)
	if err != nil || len(dueRows) == 0 {
		return nil, err
	}

	var created []data_models.Task
	for _, schedule := range dueRows {
		taskRow := extensions.TaskRow{
			Id:       uuid.MustNewUUID(),
			Name:     schedule.Name,
			GroupKey: schedule.GroupKey,
			Tenant:   schedule.Tenant,
			TaskType: schedule.TaskType,
			Payload:  schedule.Payload,

			State: extensions.TaskStateCreated,

			RetryMax: schedule.RetryMax,

			CreatedToStartedTimeoutSecs:   schedule.CreatedToStartedTimeoutSecs,
			StartedToCompletedTimeoutSecs: schedule.StartedToCompletedTimeoutSecs,
			HeartbeatTimeoutSecs:          schedule.HeartbeatTimeoutSecs,

			CreatedAt:             now,
			LastStateTransitionAt: now,

			ScheduleId: sql.NullString{String: schedule.Id, Valid: true},
		}

		err = tx.UpsertGroup(ctx, extensions.GroupRow{
			GroupKey:        schedule.GroupKey,
			MaxConcurrency:  schedule.GroupMaxConcurrency,
			LastTaskAddedAt: sql.NullTime{Time: now, Valid: true},
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return nil, err
		}
		err = tx.InsertTask(ctx, taskRow)
		if err != nil {
			return nil, err
		}

		frequency := time.Duration(schedule.FrequencyMs) * time.Millisecond
		err = tx.UpdateScheduleAfterTick(ctx,
			schedule.Id, nextDueAfter(schedule.NextDueAt, frequency, now), taskRow.Id, now)
		if err != nil {
			return nil, err
		}

		created = append(created, taskFromRow(taskRow))
	}
	return created, nil
}

// nextDueAfter advances prev by whole multiples of frequency until it passes
// now, so a schedule that missed fires while no leader was running produces
// one catch-up task instead of a burst
func nextDueAfter(prev time.Time, frequency time.Duration, now time.Time) time.Time {
	if frequency <= 0 {
		// registration rejects non-positive frequencies; never spin on a bad row
		return now.Add(time.Minute)
	}
	next := prev.Add(frequency)
	if next.After(now) {
		return next
	}
	steps := now.Sub(prev)/frequency + 1
	return prev.Add(steps * frequency)
}
