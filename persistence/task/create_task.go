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

func (p sqlTaskStoreImpl) CreateTask(
	ctx context.Context, request data_models.CreateTaskRequest,
) (*data_models.Task, error) {
	now := time.Now().UTC()

	row := extensions.TaskRow{
		Id:       uuid.MustNewUUID(),
		Name:     request.Name,
		GroupKey: request.GroupKey,
		Tenant:   request.Tenant,
		TaskType: request.TaskType,
		Payload:  request.Payload,

		State: extensions.TaskStateCreated,

		RetryCount: request.RetryCount,
		RetryMax:   request.RetryMax,

		CreatedToStartedTimeoutSecs:   request.Timeouts.CreatedToStartedSecs,
		StartedToCompletedTimeoutSecs: request.Timeouts.StartedToCompletedSecs,
		HeartbeatTimeoutSecs:          request.Timeouts.HeartbeatSecs,

		CreatedAt:             now,
		LastStateTransitionAt: now,
	}
	if request.ScheduleId != nil {
		row.ScheduleId = sql.NullString{String: *request.ScheduleId, Valid: true}
	}

	tx, err := p.session.StartTransaction(ctx, defaultTxOpts)
	if err != nil {
		return nil, err
	}

	err = p.doCreateTaskTx(ctx, tx, row, request.GroupMaxConcurrency, now)
	if err != nil {
		p.rollback(tx)
		return nil, err
	}

	err = tx.Commit()
	if err != nil {
		p.logger.Error("error on committing transaction", tag.Error(err))
		return nil, err
	}

	task := taskFromRow(row)
	return &task, nil
}

// the group upsert and the task insert share one transaction so a task can
// never reference a missing group
func (p sqlTaskStoreImpl) doCreateTaskTx(
	ctx context.Context, tx extensions.SQLTransaction,
	row extensions.TaskRow, groupMaxConcurrency int, now time.Time,
) error {
	err := tx.UpsertGroup(ctx, extensions.GroupRow{
		GroupKey:        row.GroupKey,
		MaxConcurrency:  groupMaxConcurrency,
		LastTaskAddedAt: sql.NullTime{Time: now, Valid: true},
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return err
	}
	return tx.InsertTask(ctx, row)
}
