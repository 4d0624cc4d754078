// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"sort"
	"time"

	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/extensions"
	"github.com/flowqio/flowq/persistence/data_models"
)

func (p sqlTaskStoreImpl) DequeueTasks(
	ctx context.Context, groupKey string, limit int,
) ([]data_models.Task, error) {
	tx, err := p.session.StartTransaction(ctx, defaultTxOpts)
	if err != nil {
		return nil, err
	}

	rows, err := p.doDequeueTasksTx(ctx, tx, groupKey, limit)
	if err != nil || len(rows) == 0 {
		// nothing was written
		p.rollback(tx)
		return nil, err
	}

	err = tx.Commit()
	if err != nil {
		p.logger.Error("error on committing transaction", tag.Error(err))
		return nil, err
	}

	return tasksFromRows(rows), nil
}

func (p sqlTaskStoreImpl) doDequeueTasksTx(
	ctx context.Context, tx extensions.SQLTransaction, groupKey string, limit int,
) ([]extensions.TaskRow, error) {
	// the row lock serializes cap checks per group, so two dequeuers cannot
	// both observe spare capacity and overshoot the cap together
	group, err := tx.SelectGroupForUpdate(ctx, groupKey)
	if err != nil {
		return nil, err
	}
	if group == nil {
		p.logger.Debug("dequeue for unknown group", tag.GroupKey(groupKey))
		return nil, nil
	}

	started, err := tx.CountStartedTasks(ctx, groupKey)
	if err != nil {
		return nil, err
	}
	capacity := group.MaxConcurrency - started
	if capacity <= 0 {
		return nil, nil
	}
	if limit > capacity {
		limit = capacity
	}

	candidates, err := tx.SelectCreatedTasksForUpdateSkipLocked(ctx, groupKey, limit)
	if err != nil || len(candidates) == 0 {
		return nil, err
	}

	taskIds := make([]string, 0, len(candidates))
	for _, row := range candidates {
		taskIds = append(taskIds, row.Id)
	}

	rows, err := tx.UpdateTasksToStarted(ctx, taskIds, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	// RETURNING does not guarantee order
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].Id < rows[j].Id
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	return rows, nil
}
