// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package lease

import (
	"context"
	"time"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/config"
	"github.com/flowqio/flowq/extensions"
	"github.com/flowqio/flowq/persistence"
	"github.com/flowqio/flowq/persistence/data_models"
)

type sqlLeaseStoreImpl struct {
	session extensions.SQLDBSession
	logger  log.Logger
}

func NewSQLLeaseStore(sqlConfig config.SQL, logger log.Logger) (persistence.LeaseStore, error) {
	session, err := extensions.NewSQLSession(&sqlConfig)
	return &sqlLeaseStoreImpl{
		session: session,
		logger:  logger,
	}, err
}

func (p sqlLeaseStoreImpl) Close() error {
	return p.session.Close()
}

func (p sqlLeaseStoreImpl) Elect(
	ctx context.Context, leaderKey, nodeId string, ttl time.Duration,
) (*data_models.Lease, error) {
	now := time.Now().UTC()
	row, err := p.session.ElectLease(ctx, leaderKey, nodeId, now.Add(ttl), now)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return &data_models.Lease{
		LeaderKey: row.LeaderKey,
		NodeId:    row.NodeId,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

func (p sqlLeaseStoreImpl) Release(ctx context.Context, leaderKey, nodeId string) error {
	return p.session.ReleaseLease(ctx, leaderKey, nodeId, time.Now().UTC())
}
