// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/flowqio/flowq/extensions"
)

// replace-by-name semantics: re-registering a schedule updates the mutable
// fields and clears a previous soft delete, keeping the same id
const upsertScheduleQuery = `INSERT INTO flowq_schedules
	(id, name, state, group_key, group_max_concurrency, tenant, task_type, payload,
	 starts_at, frequency_ms, next_due_at,
	 retry_max, created_to_started_timeout_secs, started_to_completed_timeout_secs, heartbeat_timeout_secs,
	 last_scheduled_task_id, created_at, updated_at, deleted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NULL, $16, $16, NULL)
	ON CONFLICT (name) DO UPDATE
	SET state = EXCLUDED.state,
	    group_key = EXCLUDED.group_key,
	    group_max_concurrency = EXCLUDED.group_max_concurrency,
	    tenant = EXCLUDED.tenant,
	    task_type = EXCLUDED.task_type,
	    payload = EXCLUDED.payload,
	    starts_at = EXCLUDED.starts_at,
	    frequency_ms = EXCLUDED.frequency_ms,
	    next_due_at = EXCLUDED.next_due_at,
	    retry_max = EXCLUDED.retry_max,
	    created_to_started_timeout_secs = EXCLUDED.created_to_started_timeout_secs,
	    started_to_completed_timeout_secs = EXCLUDED.started_to_completed_timeout_secs,
	    heartbeat_timeout_secs = EXCLUDED.heartbeat_timeout_secs,
	    updated_at = EXCLUDED.updated_at,
	    deleted_at = NULL
	RETURNING *`

func (d dbSession) UpsertScheduleByName(
	ctx context.Context, row extensions.ScheduleRow,
) (*extensions.ScheduleRow, error) {
	var updated extensions.ScheduleRow
	err := d.db.GetContext(ctx, &updated, upsertScheduleQuery,
		row.Id, row.Name, row.State, row.GroupKey, row.GroupMaxConcurrency, row.Tenant, row.TaskType, row.Payload,
		row.StartsAt, row.FrequencyMs, row.NextDueAt,
		row.RetryMax, row.CreatedToStartedTimeoutSecs, row.StartedToCompletedTimeoutSecs, row.HeartbeatTimeoutSecs,
		row.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

const selectScheduleQuery = `SELECT * FROM flowq_schedules WHERE id = $1`

func (d dbSession) SelectSchedule(ctx context.Context, scheduleId string) (*extensions.ScheduleRow, error) {
	var row extensions.ScheduleRow
	err := d.db.GetContext(ctx, &row, selectScheduleQuery, scheduleId)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SKIP LOCKED so a tick racing with another leader handover never fires the
// same schedule twice. A schedule whose previous task is still CREATED or
// STARTED is not due: fires never stack behind a slow or stuck task.
const selectDueSchedulesQuery = `SELECT * FROM flowq_schedules
	WHERE state = 'STARTED' AND starts_at <= $1 AND next_due_at <= $1
	AND (last_scheduled_task_id IS NULL OR NOT EXISTS (
		SELECT 1 FROM flowq_tasks t
		WHERE t.id = flowq_schedules.last_scheduled_task_id
		AND t.state IN ('CREATED', 'STARTED')
	))
	ORDER BY next_due_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED`

func (d dbTx) SelectDueSchedulesForUpdateSkipLocked(
	ctx context.Context, now time.Time, limit int,
) ([]extensions.ScheduleRow, error) {
	var rows []extensions.ScheduleRow
	err := d.tx.SelectContext(ctx, &rows, selectDueSchedulesQuery, now, limit)
	return rows, err
}

const updateScheduleAfterTickQuery = `UPDATE flowq_schedules
	SET next_due_at = $2,
	    last_scheduled_task_id = $3,
	    updated_at = $4
	WHERE id = $1`

func (d dbTx) UpdateScheduleAfterTick(
	ctx context.Context, scheduleId string, nextDueAt time.Time, lastScheduledTaskId string, now time.Time,
) error {
	_, err := d.tx.ExecContext(ctx, updateScheduleAfterTickQuery, scheduleId, nextDueAt, lastScheduledTaskId, now)
	return err
}

const updateScheduleStateQuery = `UPDATE flowq_schedules
	SET state = $2,
	    updated_at = $3,
	    deleted_at = CASE WHEN $2 = 'DELETED' THEN $3 ELSE deleted_at END
	WHERE id = $1 AND state = ANY($4)
	RETURNING *`

func (d dbSession) UpdateScheduleStateIfIn(
	ctx context.Context, scheduleId string, fromStates []string, toState string, now time.Time,
) (*extensions.ScheduleRow, error) {
	var row extensions.ScheduleRow
	err := d.db.GetContext(ctx, &row, updateScheduleStateQuery, scheduleId, toState, now, pq.Array(fromStates))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// NOTE: deleting one schedule at a time to avoid massive cascading deletes of tasks
const deleteSchedulesQuery = `DELETE FROM flowq_schedules
	WHERE id = ANY(ARRAY(
		SELECT id
		FROM flowq_schedules
		WHERE state = 'DELETED' AND deleted_at < $1
		ORDER BY id
		LIMIT $2
	))`

func (d dbSession) DeleteSchedulesRemovedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	result, err := d.db.ExecContext(ctx, deleteSchedulesQuery, cutoff, limit)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
