// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/flowqio/flowq/extensions"
)

const insertTaskQuery = `INSERT INTO flowq_tasks
	(id, name, group_key, tenant, task_type, payload, state, output, error,
	 retry_count, retry_max,
	 created_to_started_timeout_secs, started_to_completed_timeout_secs, heartbeat_timeout_secs,
	 created_at, started_at, last_heartbeat_at, last_state_transition_at, terminated_at, schedule_id)
	VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9,
	 $10, $11,
	 $12, $13, $14,
	 $15, $16, $17, $18, $19, $20)`

func (d dbTx) InsertTask(ctx context.Context, row extensions.TaskRow) error {
	_, err := d.tx.ExecContext(ctx, insertTaskQuery,
		row.Id, row.Name, row.GroupKey, row.Tenant, row.TaskType, row.Payload, row.State, row.Output, row.Error,
		row.RetryCount, row.RetryMax,
		row.CreatedToStartedTimeoutSecs, row.StartedToCompletedTimeoutSecs, row.HeartbeatTimeoutSecs,
		row.CreatedAt, row.StartedAt, row.LastHeartbeatAt, row.LastStateTransitionAt, row.TerminatedAt, row.ScheduleId)
	return err
}

// FIFO by creation time; SKIP LOCKED so concurrent dequeuers never wait on
// each other and never double-claim
const selectCreatedTasksQuery = `SELECT * FROM flowq_tasks
	WHERE group_key = $1 AND state = 'CREATED'
	ORDER BY created_at, id
	LIMIT $2
	FOR UPDATE SKIP LOCKED`

func (d dbTx) SelectCreatedTasksForUpdateSkipLocked(
	ctx context.Context, groupKey string, limit int,
) ([]extensions.TaskRow, error) {
	var rows []extensions.TaskRow
	err := d.tx.SelectContext(ctx, &rows, selectCreatedTasksQuery, groupKey, limit)
	return rows, err
}

const countStartedTasksQuery = `SELECT COUNT(*) FROM flowq_tasks
	WHERE group_key = $1 AND state = 'STARTED'`

func (d dbTx) CountStartedTasks(ctx context.Context, groupKey string) (int, error) {
	var count int
	err := d.tx.GetContext(ctx, &count, countStartedTasksQuery, groupKey)
	return count, err
}

const updateTasksToStartedQuery = `UPDATE flowq_tasks
	SET state = 'STARTED',
	    started_at = $2,
	    last_heartbeat_at = $2,
	    last_state_transition_at = $2
	WHERE id = ANY($1)
	RETURNING *`

func (d dbTx) UpdateTasksToStarted(
	ctx context.Context, taskIds []string, now time.Time,
) ([]extensions.TaskRow, error) {
	var rows []extensions.TaskRow
	err := d.tx.SelectContext(ctx, &rows, updateTasksToStartedQuery, pq.Array(taskIds), now)
	return rows, err
}

const selectTaskQuery = `SELECT * FROM flowq_tasks WHERE id = $1`

func (d dbSession) SelectTask(ctx context.Context, taskId string) (*extensions.TaskRow, error) {
	var row extensions.TaskRow
	err := d.db.GetContext(ctx, &row, selectTaskQuery, taskId)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d dbSession) SelectTasks(
	ctx context.Context, filter extensions.TaskSelectFilter,
) ([]extensions.TaskRow, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(filter.TaskIds) > 0 {
		conds = append(conds, "id = ANY("+arg(pq.Array(filter.TaskIds))+")")
	}
	if filter.GroupKey != "" {
		conds = append(conds, "group_key = "+arg(filter.GroupKey))
	}
	if filter.Tenant != "" {
		conds = append(conds, "tenant = "+arg(filter.Tenant))
	}
	if len(filter.States) > 0 {
		conds = append(conds, "state = ANY("+arg(pq.Array(filter.States))+")")
	}
	if filter.ScheduleId != "" {
		conds = append(conds, "schedule_id = "+arg(filter.ScheduleId))
	}
	query := "SELECT * FROM flowq_tasks"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY created_at, id LIMIT " + arg(limit)

	var rows []extensions.TaskRow
	err := d.db.SelectContext(ctx, &rows, query, args...)
	return rows, err
}

const updateTaskHeartbeatQuery = `UPDATE flowq_tasks
	SET last_heartbeat_at = $2
	WHERE id = $1 AND state = 'STARTED'`

func (d dbSession) UpdateTaskHeartbeat(ctx context.Context, taskId string, now time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx, updateTaskHeartbeatQuery, taskId, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// the state guard makes concurrent transitions first-writer-wins: the loser
// matches zero rows and the caller reports InvalidTransition
const updateTaskStateQuery = `UPDATE flowq_tasks
	SET state = $2,
	    output = $3,
	    error = $4,
	    last_state_transition_at = $5,
	    terminated_at = $5
	WHERE id = $1 AND state = ANY($6)
	RETURNING *`

func (d dbSession) UpdateTaskStateIfIn(
	ctx context.Context, update extensions.TaskStateUpdate,
) (*extensions.TaskRow, error) {
	var row extensions.TaskRow
	err := d.db.GetContext(ctx, &row, updateTaskStateQuery,
		update.TaskId, update.ToState, update.Output, update.Error, update.Now, pq.Array(update.FromStates))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// a single guarded statement so the sweep and a concurrent succeed/fail
// cannot both win; the row lock is held only for this statement
const expireTimedOutTasksQuery = `WITH eligible_tasks AS (
	SELECT id
	FROM flowq_tasks
	WHERE (state = 'CREATED'
	       AND created_at + created_to_started_timeout_secs * INTERVAL '1 second' < $1)
	   OR (state = 'STARTED'
	       AND (last_heartbeat_at + heartbeat_timeout_secs * INTERVAL '1 second' < $1
	            OR last_state_transition_at + started_to_completed_timeout_secs * INTERVAL '1 second' < $1))
	ORDER BY created_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
UPDATE flowq_tasks t
SET state = 'EXPIRED',
    last_state_transition_at = $1,
    terminated_at = $1
FROM eligible_tasks e
WHERE t.id = e.id
RETURNING t.*`

func (d dbSession) ExpireTimedOutTasks(
	ctx context.Context, now time.Time, limit int,
) ([]extensions.TaskRow, error) {
	var rows []extensions.TaskRow
	err := d.db.SelectContext(ctx, &rows, expireTimedOutTasksQuery, now, limit)
	return rows, err
}

// keep the most recent task of every schedule so its lineage stays resolvable
const deleteTerminatedTasksQuery = `DELETE FROM flowq_tasks
	WHERE id = ANY(ARRAY(
		SELECT t.id
		FROM flowq_tasks t
		LEFT JOIN flowq_schedules s ON s.last_scheduled_task_id = t.id
		WHERE t.state IN ('SUCCEEDED', 'FAILED', 'EXPIRED', 'CANCELLED')
		  AND t.last_state_transition_at < $1
		  AND s.id IS NULL
		ORDER BY t.created_at
		LIMIT $2
	))`

func (d dbSession) DeleteTerminatedTasksBefore(
	ctx context.Context, cutoff time.Time, limit int,
) (int64, error) {
	result, err := d.db.ExecContext(ctx, deleteTerminatedTasksQuery, cutoff, limit)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
