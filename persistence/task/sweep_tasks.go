// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"time"

	"github.com/flowqio/flowq/persistence/data_models"
)

func (p sqlTaskStoreImpl) ExpireTimedOutTasks(
	ctx context.Context, now time.Time, limit int,
) ([]data_models.Task, error) {
	rows, err := p.session.ExpireTimedOutTasks(ctx, now, limit)
	if err != nil {
		return nil, err
	}
	return tasksFromRows(rows), nil
}

func (p sqlTaskStoreImpl) DeleteTerminatedTasksBefore(
	ctx context.Context, cutoff time.Time, limit int,
) (int64, error) {
	return p.session.DeleteTerminatedTasksBefore(ctx, cutoff, limit)
}
