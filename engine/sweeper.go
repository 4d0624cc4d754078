// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/common/metrics"
	"github.com/flowqio/flowq/config"
	"github.com/flowqio/flowq/events"
	"github.com/flowqio/flowq/persistence"
	"github.com/flowqio/flowq/persistence/data_models"
)

// AbortNotifier tells the runners of a tenant to stop working on a task
// that the scheduler no longer wants
type AbortNotifier interface {
	NotifyAbort(ctx context.Context, task data_models.Task) error
}

// Sweeper is the background enforcement half of the engine: it expires
// tasks that blew a timeout window, purges terminated tasks and soft-deleted
// schedules past retention, and drops idle groups. Every instance runs a
// sweeper; all writes are guarded single statements, so overlapping sweeps
// are safe.
type Sweeper struct {
	cfg    config.SweepConfig
	store  persistence.TaskStore
	bus    events.Bus
	aborts AbortNotifier
	logger log.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewSweeper(
	cfg config.SweepConfig, store persistence.TaskStore,
	bus events.Bus, aborts AbortNotifier, logger log.Logger,
) *Sweeper {
	return &Sweeper{
		cfg:    cfg,
		store:  store,
		bus:    bus,
		aborts: aborts,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

func (s *Sweeper) Start() error {
	s.wg.Add(1)
	go s.run()
	return nil
}

func (s *Sweeper) Stop() error {
	close(s.stopCh)
	s.wg.Wait()
	return nil
}

func (s *Sweeper) run() {
	defer s.wg.Done()
	for {
		timer := time.NewTimer(s.nextInterval())
		select {
		case <-timer.C:
			s.sweepOnce()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

// jitter keeps the sweepers of multiple instances from scanning in lockstep
func (s *Sweeper) nextInterval() time.Duration {
	interval := s.cfg.Interval
	if s.cfg.IntervalJitter > 0 {
		interval += time.Duration(rand.Int63n(int64(s.cfg.IntervalJitter)))
	}
	return interval
}

func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := time.Now().UTC()
	s.expireTimedOutTasks(ctx, now)
	s.purge(ctx, now)
}

func (s *Sweeper) expireTimedOutTasks(ctx context.Context, now time.Time) {
	expired, err := s.store.ExpireTimedOutTasks(ctx, now, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("failed to expire timed out tasks", tag.Error(err))
		return
	}
	if len(expired) == 0 {
		return
	}
	s.logger.Info("expired timed out tasks", tag.Counter(len(expired)))

	for _, task := range expired {
		metrics.TasksExpiredBySweep.Inc()
		metrics.TasksTerminated.WithLabelValues(string(task.State)).Inc()
		s.bus.Publish(events.Event{
			Name:   events.TaskCompletedEvent(task.Id),
			TaskId: task.Id,
		})
		// a task that never started has no runner to abort
		if s.aborts != nil && task.StartedAt != nil {
			err = s.aborts.NotifyAbort(ctx, task)
			if err != nil {
				s.logger.Error("failed to notify abort of expired task",
					tag.Error(err), tag.TaskId(task.Id), tag.Tenant(task.Tenant))
			}
		}
	}
}

func (s *Sweeper) purge(ctx context.Context, now time.Time) {
	deleted, err := s.store.DeleteTerminatedTasksBefore(ctx, now.Add(-s.cfg.TaskRetention), s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("failed to purge terminated tasks", tag.Error(err))
	} else if deleted > 0 {
		s.logger.Info("purged terminated tasks", tag.Counter(int(deleted)))
	}

	deleted, err = s.store.DeleteIdleGroups(ctx, now.Add(-s.cfg.GroupIdleWindow), s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("failed to delete idle groups", tag.Error(err))
	} else if deleted > 0 {
		s.logger.Info("deleted idle groups", tag.Counter(int(deleted)))
	}

	deleted, err = s.store.DeleteSchedulesRemovedBefore(ctx, now.Add(-s.cfg.TaskRetention), s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("failed to purge deleted schedules", tag.Error(err))
	} else if deleted > 0 {
		s.logger.Info("purged deleted schedules", tag.Counter(int(deleted)))
	}
}
