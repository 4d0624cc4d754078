// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"database/sql"
	"time"

	"github.com/flowqio/flowq/common/ptr"
	"github.com/flowqio/flowq/extensions"
	"github.com/flowqio/flowq/persistence/data_models"
)

func timePtrFromNull(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return ptr.Any(t.Time)
}

func strPtrFromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return ptr.Any(s.String)
}

func taskFromRow(row extensions.TaskRow) data_models.Task {
	return data_models.Task{
		Id:       row.Id,
		Name:     row.Name,
		GroupKey: row.GroupKey,
		Tenant:   row.Tenant,
		TaskType: row.TaskType,
		Payload:  row.Payload,

		State:  data_models.TaskState(row.State),
		Output: row.Output,
		Error:  row.Error,

		RetryCount: row.RetryCount,
		RetryMax:   row.RetryMax,

		Timeouts: data_models.TimeoutSettings{
			CreatedToStartedSecs:   row.CreatedToStartedTimeoutSecs,
			StartedToCompletedSecs: row.StartedToCompletedTimeoutSecs,
			HeartbeatSecs:          row.HeartbeatTimeoutSecs,
		},

		CreatedAt:             row.CreatedAt,
		StartedAt:             timePtrFromNull(row.StartedAt),
		LastHeartbeatAt:       timePtrFromNull(row.LastHeartbeatAt),
		LastStateTransitionAt: row.LastStateTransitionAt,
		TerminatedAt:          timePtrFromNull(row.TerminatedAt),

		ScheduleId: strPtrFromNull(row.ScheduleId),
	}
}

func tasksFromRows(rows []extensions.TaskRow) []data_models.Task {
	tasks := make([]data_models.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, taskFromRow(row))
	}
	return tasks
}

func taskStatesToStrings(states []data_models.TaskState) []string {
	strs := make([]string, 0, len(states))
	for _, s := range states {
		strs = append(strs, string(s))
	}
	return strs
}

func groupFromRow(row extensions.GroupRow) data_models.Group {
	return data_models.Group{
		GroupKey:        row.GroupKey,
		MaxConcurrency:  row.MaxConcurrency,
		LastTaskAddedAt: timePtrFromNull(row.LastTaskAddedAt),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func scheduleFromRow(row extensions.ScheduleRow) data_models.Schedule {
	return data_models.Schedule{
		Id:                  row.Id,
		Name:                row.Name,
		State:               data_models.ScheduleState(row.State),
		GroupKey:            row.GroupKey,
		GroupMaxConcurrency: row.GroupMaxConcurrency,
		Tenant:              row.Tenant,
		TaskType:            row.TaskType,
		Payload:             row.Payload,

		StartsAt:  row.StartsAt,
		Frequency: time.Duration(row.FrequencyMs) * time.Millisecond,
		NextDueAt: row.NextDueAt,

		RetryMax: row.RetryMax,
		Timeouts: data_models.TimeoutSettings{
			CreatedToStartedSecs:   row.CreatedToStartedTimeoutSecs,
			StartedToCompletedSecs: row.StartedToCompletedTimeoutSecs,
			HeartbeatSecs:          row.HeartbeatTimeoutSecs,
		},

		LastScheduledTaskId: strPtrFromNull(row.LastScheduledTaskId),

		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		DeletedAt: timePtrFromNull(row.DeletedAt),
	}
}
