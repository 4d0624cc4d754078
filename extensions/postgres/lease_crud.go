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

// election is a single atomic statement: take the lease when the row is
// missing, expired, or already ours (renewal). When another node holds an
// unexpired lease the conditional update matches nothing and no row returns.
const electLeaseQuery = `INSERT INTO flowq_leases (leader_key, node_id, expires_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (leader_key) DO UPDATE
	SET node_id = EXCLUDED.node_id,
	    expires_at = EXCLUDED.expires_at
	WHERE flowq_leases.expires_at <= $4 OR flowq_leases.node_id = EXCLUDED.node_id
	RETURNING *`

func (d dbSession) ElectLease(
	ctx context.Context, leaderKey string, nodeId string, expiresAt time.Time, now time.Time,
) (*extensions.LeaseRow, error) {
	var row extensions.LeaseRow
	err := d.db.GetContext(ctx, &row, electLeaseQuery, leaderKey, nodeId, expiresAt, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// held by someone else
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// expiring the lease (rather than deleting the row) lets the next elect call
// take over through the same conditional update
const releaseLeaseQuery = `UPDATE flowq_leases
	SET expires_at = $3
	WHERE leader_key = $1 AND node_id = $2`

func (d dbSession) ReleaseLease(ctx context.Context, leaderKey string, nodeId string, now time.Time) error {
	_, err := d.db.ExecContext(ctx, releaseLeaseQuery, leaderKey, nodeId, now)
	return err
}
