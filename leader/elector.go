// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package leader

import (
	"context"
	"time"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/persistence"
)

// Elector is lease based leader election: callers invoke TryAcquire before
// every leader-only unit of work, so losing the lease is discovered no later
// than the next attempt. At most one node holds a given leaderKey at a time;
// a crashed leader is replaced after the lease ttl elapses.
type Elector interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type leaseElectorImpl struct {
	store     persistence.LeaseStore
	leaderKey string
	nodeId    string
	ttl       time.Duration
	logger    log.Logger

	wasLeader bool
}

func NewLeaseElector(
	store persistence.LeaseStore, leaderKey, nodeId string, ttl time.Duration, logger log.Logger,
) Elector {
	return &leaseElectorImpl{
		store:     store,
		leaderKey: leaderKey,
		nodeId:    nodeId,
		ttl:       ttl,
		logger:    logger,
	}
}

func (e *leaseElectorImpl) TryAcquire(ctx context.Context) (bool, error) {
	lease, err := e.store.Elect(ctx, e.leaderKey, e.nodeId, e.ttl)
	if err != nil {
		return false, err
	}
	isLeader := lease != nil
	if isLeader != e.wasLeader {
		if isLeader {
			e.logger.Info("acquired leadership",
				tag.LeaderKey(e.leaderKey), tag.NodeId(e.nodeId), tag.ExpiresAt(lease.ExpiresAt))
		} else {
			e.logger.Info("lost leadership",
				tag.LeaderKey(e.leaderKey), tag.NodeId(e.nodeId))
		}
		e.wasLeader = isLeader
	}
	return isLeader, nil
}

func (e *leaseElectorImpl) Release(ctx context.Context) error {
	if !e.wasLeader {
		return nil
	}
	e.wasLeader = false
	e.logger.Info("released leadership", tag.LeaderKey(e.leaderKey), tag.NodeId(e.nodeId))
	return e.store.Release(ctx, e.leaderKey, e.nodeId)
}
