// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/flowqio/flowq/extensions"
)

const upsertGroupQuery = `INSERT INTO flowq_groups
	(group_key, max_concurrency, last_task_added_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $4)
	ON CONFLICT (group_key) DO UPDATE
	SET max_concurrency = EXCLUDED.max_concurrency,
	    last_task_added_at = EXCLUDED.last_task_added_at,
	    updated_at = EXCLUDED.updated_at`

func (d dbTx) UpsertGroup(ctx context.Context, row extensions.GroupRow) error {
	_, err := d.tx.ExecContext(ctx, upsertGroupQuery,
		row.GroupKey, row.MaxConcurrency, row.LastTaskAddedAt, row.UpdatedAt)
	return err
}

// the row lock serializes concurrency-cap checks of concurrent dequeuers on
// the same group; dequeuers of other groups are unaffected
const selectGroupForUpdateQuery = `SELECT * FROM flowq_groups WHERE group_key = $1 FOR UPDATE`

func (d dbTx) SelectGroupForUpdate(ctx context.Context, groupKey string) (*extensions.GroupRow, error) {
	var row extensions.GroupRow
	err := d.tx.GetContext(ctx, &row, selectGroupForUpdateQuery, groupKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

const selectGroupQuery = `SELECT * FROM flowq_groups WHERE group_key = $1`

func (d dbSession) SelectGroup(ctx context.Context, groupKey string) (*extensions.GroupRow, error) {
	var row extensions.GroupRow
	err := d.db.GetContext(ctx, &row, selectGroupQuery, groupKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// a group is idle when no task has been added and nothing updated it for
// longer than the idle window; ad-hoc per-tenant groups would otherwise grow
// without bound
const deleteIdleGroupsQuery = `DELETE FROM flowq_groups
	WHERE group_key = ANY(ARRAY(
		SELECT group_key
		FROM flowq_groups
		WHERE COALESCE(last_task_added_at, updated_at) < $1
		ORDER BY group_key
		LIMIT $2
	))`

func (d dbSession) DeleteIdleGroups(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	result, err := d.db.ExecContext(ctx, deleteIdleGroupsQuery, cutoff, limit)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
