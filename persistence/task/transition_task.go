// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"time"

	"github.com/flowqio/flowq/extensions"
	"github.com/flowqio/flowq/persistence/data_models"
)

func (p sqlTaskStoreImpl) TransitionTask(
	ctx context.Context, request data_models.TransitionTaskRequest,
) (*data_models.Task, error) {
	row, err := p.session.UpdateTaskStateIfIn(ctx, extensions.TaskStateUpdate{
		TaskId:     request.TaskId,
		FromStates: taskStatesToStrings(request.FromStates),
		ToState:    string(request.ToState),
		Output:     request.Output,
		Error:      request.Error,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if row == nil {
		// missing, or the guard lost the race
		return nil, nil
	}
	task := taskFromRow(*row)
	return &task, nil
}

func (p sqlTaskStoreImpl) HeartbeatTask(ctx context.Context, taskId string) (bool, error) {
	affected, err := p.session.UpdateTaskHeartbeat(ctx, taskId, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
