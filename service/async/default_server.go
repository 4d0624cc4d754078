// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package async

import (
	"context"

	"go.uber.org/multierr"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/config"
	"github.com/flowqio/flowq/engine"
	"github.com/flowqio/flowq/events"
	"github.com/flowqio/flowq/leader"
	"github.com/flowqio/flowq/persistence"
)

// defaultServer is the background half of a FlowQ deployment: the timeout
// sweeper on every instance and the leader-elected schedule ticker. It can
// run in the same process as the API service or on its own.
type defaultServer struct {
	rootCtx context.Context
	cfg     config.Config
	logger  log.Logger

	sweeper *engine.Sweeper
	ticker  *engine.ScheduleTicker
}

func NewDefaultAsyncServer(
	rootCtx context.Context, cfg config.Config,
	store persistence.TaskStore, leaseStore persistence.LeaseStore,
	bus events.Bus, aborts engine.AbortNotifier,
	logger log.Logger,
) Server {
	tickCfg := cfg.AsyncService.ScheduleTick
	elector := leader.NewLeaseElector(
		leaseStore, tickCfg.LeaderKey, tickCfg.NodeId, tickCfg.LeaseTTL, logger)

	return &defaultServer{
		rootCtx: rootCtx,
		cfg:     cfg,
		logger:  logger,
		sweeper: engine.NewSweeper(cfg.AsyncService.Sweep, store, bus, aborts, logger),
		ticker:  engine.NewScheduleTicker(tickCfg, store, elector, bus, logger),
	}
}

func (s *defaultServer) Start() error {
	err := s.sweeper.Start()
	if err != nil {
		return err
	}
	return s.ticker.Start()
}

func (s *defaultServer) Stop(ctx context.Context) error {
	return multierr.Append(s.ticker.Stop(), s.sweeper.Stop())
}
