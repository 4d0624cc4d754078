// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"

	"github.com/flowqio/flowq/extensions"
	"github.com/flowqio/flowq/persistence/data_models"
)

func (p sqlTaskStoreImpl) GetTask(ctx context.Context, taskId string) (*data_models.Task, error) {
	row, err := p.session.SelectTask(ctx, taskId)
	if err != nil {
		if p.session.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	task := taskFromRow(*row)
	return &task, nil
}

func (p sqlTaskStoreImpl) SearchTasks(
	ctx context.Context, request data_models.TaskSearchRequest,
) ([]data_models.Task, error) {
	rows, err := p.session.SelectTasks(ctx, extensions.TaskSelectFilter{
		TaskIds:    request.TaskIds,
		GroupKey:   request.GroupKey,
		Tenant:     request.Tenant,
		States:     taskStatesToStrings(request.States),
		ScheduleId: request.ScheduleId,
		Limit:      request.Limit,
	})
	if err != nil {
		return nil, err
	}
	return tasksFromRows(rows), nil
}
