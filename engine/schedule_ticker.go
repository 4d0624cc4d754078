// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/common/metrics"
	"github.com/flowqio/flowq/config"
	"github.com/flowqio/flowq/events"
	"github.com/flowqio/flowq/leader"
	"github.com/flowqio/flowq/persistence"
)

// ScheduleTicker fires due schedules. Every instance runs a ticker, but a
// tick does work only while the instance holds the leader lease, so each
// due schedule produces exactly one task per fire. The tick interval is
// shorter than the lease ttl, making every tick also a lease renewal.
type ScheduleTicker struct {
	cfg     config.ScheduleTickConfig
	store   persistence.TaskStore
	elector leader.Elector
	bus     events.Bus
	logger  log.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewScheduleTicker(
	cfg config.ScheduleTickConfig, store persistence.TaskStore,
	elector leader.Elector, bus events.Bus, logger log.Logger,
) *ScheduleTicker {
	return &ScheduleTicker{
		cfg:     cfg,
		store:   store,
		elector: elector,
		bus:     bus,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

func (t *ScheduleTicker) Start() error {
	t.wg.Add(1)
	go t.run()
	return nil
}

func (t *ScheduleTicker) Stop() error {
	close(t.stopCh)
	t.wg.Wait()

	// hand the lease over right away instead of letting it expire
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.elector.Release(ctx)
}

func (t *ScheduleTicker) run() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.tickOnce()
		case <-t.stopCh:
			return
		}
	}
}

func (t *ScheduleTicker) tickOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.LeaseTTL)
	defer cancel()

	isLeader, err := t.elector.TryAcquire(ctx)
	if err != nil {
		t.logger.Error("failed to run leader election", tag.Error(err), tag.NodeId(t.cfg.NodeId))
		return
	}
	if !isLeader {
		return
	}

	created, err := t.store.TickDueSchedules(ctx, time.Now().UTC(), t.cfg.BatchSize)
	if err != nil {
		t.logger.Error("failed to tick due schedules", tag.Error(err))
		return
	}

	for _, task := range created {
		metrics.ScheduleTicks.Inc()
		metrics.TasksCreated.WithLabelValues(task.TaskType).Inc()
		t.bus.Publish(events.Event{
			Name:   events.TaskCreatedEvent(task.GroupKey),
			TaskId: task.Id,
		})
		t.logger.Debug("schedule fired",
			tag.TaskId(task.Id), tag.TaskName(task.Name), tag.GroupKey(task.GroupKey))
	}
}
