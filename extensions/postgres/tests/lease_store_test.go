// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func uniqueLeaderKey() string {
	return fmt.Sprintf("it-leader-%d", time.Now().UnixNano())
}

func TestElectTakesAndRenews(t *testing.T) {
	ass := assert.New(t)
	ctx := context.Background()
	leaderKey := uniqueLeaderKey()

	lease, err := leaseStore.Elect(ctx, leaderKey, "node-1", 15*time.Second)
	ass.Nil(err)
	ass.NotNil(lease)
	ass.Equal("node-1", lease.NodeId)

	// a competing node cannot take an unexpired lease
	lease, err = leaseStore.Elect(ctx, leaderKey, "node-2", 15*time.Second)
	ass.Nil(err)
	ass.Nil(lease)

	// the holder renews its own lease
	renewed, err := leaseStore.Elect(ctx, leaderKey, "node-1", 15*time.Second)
	ass.Nil(err)
	ass.NotNil(renewed)
	ass.True(renewed.ExpiresAt.After(time.Now().UTC()))
}

func TestElectTakesOverExpiredLease(t *testing.T) {
	ass := assert.New(t)
	ctx := context.Background()
	leaderKey := uniqueLeaderKey()

	lease, err := leaseStore.Elect(ctx, leaderKey, "node-1", time.Second)
	ass.Nil(err)
	ass.NotNil(lease)

	time.Sleep(1500 * time.Millisecond)

	lease, err = leaseStore.Elect(ctx, leaderKey, "node-2", 15*time.Second)
	ass.Nil(err)
	ass.NotNil(lease)
	ass.Equal("node-2", lease.NodeId)
}

func TestReleaseHandsOverWithoutWaitingOutTTL(t *testing.T) {
	ass := assert.New(t)
	ctx := context.Background()
	leaderKey := uniqueLeaderKey()

	lease, err := leaseStore.Elect(ctx, leaderKey, "node-1", time.Hour)
	ass.Nil(err)
	ass.NotNil(lease)

	err = leaseStore.Release(ctx, leaderKey, "node-1")
	ass.Nil(err)

	lease, err = leaseStore.Elect(ctx, leaderKey, "node-2", 15*time.Second)
	ass.Nil(err)
	ass.NotNil(lease)
	ass.Equal("node-2", lease.NodeId)
}

func TestReleaseByNonHolderIsIgnored(t *testing.T) {
	ass := assert.New(t)
	ctx := context.Background()
	leaderKey := uniqueLeaderKey()

	lease, err := leaseStore.Elect(ctx, leaderKey, "node-1", time.Hour)
	ass.Nil(err)
	ass.NotNil(lease)

	err = leaseStore.Release(ctx, leaderKey, "node-2")
	ass.Nil(err)

	// node-1 still holds the lease
	lease, err = leaseStore.Elect(ctx, leaderKey, "node-3", 15*time.Second)
	ass.Nil(err)
	ass.Nil(lease)
}
