// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/config"
	"github.com/flowqio/flowq/events"
	"github.com/flowqio/flowq/persistence/data_models"
)

type recordingAbortNotifier struct {
	sync.Mutex
	aborted []string
}

func (n *recordingAbortNotifier) NotifyAbort(_ context.Context, task data_models.Task) error {
	n.Lock()
	defer n.Unlock()
	n.aborted = append(n.aborted, task.Id)
	return nil
}

func newTestSweeper(store *fakeTaskStore) (*Sweeper, *recordingBus, *recordingAbortNotifier) {
	bus := &recordingBus{}
	aborts := &recordingAbortNotifier{}
	cfg := config.SweepConfig{
		Interval:        time.Hour,
		BatchSize:       100,
		TaskRetention:   7 * 24 * time.Hour,
		GroupIdleWindow: 14 * 24 * time.Hour,
	}
	return NewSweeper(cfg, store, bus, aborts, log.NewDevelopmentLogger()), bus, aborts
}

func (f *fakeTaskStore) setTaskFields(t *testing.T, taskId string, mutate func(*data_models.Task)) {
	f.Lock()
	defer f.Unlock()
	task, ok := f.tasks[taskId]
	assert.True(t, ok)
	mutate(task)
}

func TestSweepExpiresTimedOutTasks(t *testing.T) {
	store := newFakeTaskStore()
	sweeper, bus, aborts := newTestSweeper(store)
	ctx := context.Background()
	now := time.Now().UTC()

	fresh, err := store.CreateTask(ctx, createTaskRequest("fresh", "group-a"))
	assert.Nil(t, err)
	store.setTaskFields(t, fresh.Id, func(task *data_models.Task) {
		task.CreatedAt = now
		task.Timeouts = data_models.TimeoutSettings{
			CreatedToStartedSecs: 3600, StartedToCompletedSecs: 3600, HeartbeatSecs: 600,
		}
	})

	neverStarted, err := store.CreateTask(ctx, createTaskRequest("never-started", "group-a"))
	assert.Nil(t, err)
	store.setTaskFields(t, neverStarted.Id, func(task *data_models.Task) {
		task.CreatedAt = now.Add(-2 * time.Hour)
		task.Timeouts = data_models.TimeoutSettings{
			CreatedToStartedSecs: 3600, StartedToCompletedSecs: 3600, HeartbeatSecs: 600,
		}
	})

	staleHeartbeat, err := store.CreateTask(ctx, createTaskRequest("stale-heartbeat", "group-a"))
	assert.Nil(t, err)
	store.setTaskFields(t, staleHeartbeat.Id, func(task *data_models.Task) {
		startedAt := now.Add(-30 * time.Minute)
		heartbeatAt := now.Add(-20 * time.Minute)
		task.State = data_models.TaskStateStarted
		task.StartedAt = &startedAt
		task.LastHeartbeatAt = &heartbeatAt
		task.LastStateTransitionAt = startedAt
		task.Timeouts = data_models.TimeoutSettings{
			CreatedToStartedSecs: 3600, StartedToCompletedSecs: 3600, HeartbeatSecs: 600,
		}
	})

	sweeper.sweepOnce()

	loaded, err := store.GetTask(ctx, fresh.Id)
	assert.Nil(t, err)
	assert.Equal(t, data_models.TaskStateCreated, loaded.State)

	loaded, err = store.GetTask(ctx, neverStarted.Id)
	assert.Nil(t, err)
	assert.Equal(t, data_models.TaskStateExpired, loaded.State)
	assert.Nil(t, loaded.Output)
	assert.Nil(t, loaded.Error)

	loaded, err = store.GetTask(ctx, staleHeartbeat.Id)
	assert.Nil(t, err)
	assert.Equal(t, data_models.TaskStateExpired, loaded.State)

	names := bus.eventNames()
	assert.Contains(t, names, events.TaskCompletedEvent(neverStarted.Id))
	assert.Contains(t, names, events.TaskCompletedEvent(staleHeartbeat.Id))
	assert.NotContains(t, names, events.TaskCompletedEvent(fresh.Id))

	// only the task that was actually running gets an abort
	assert.Equal(t, []string{staleHeartbeat.Id}, aborts.aborted)
}

func TestSweepExpiresOnCompletionTimeout(t *testing.T) {
	store := newFakeTaskStore()
	sweeper, _, aborts := newTestSweeper(store)
	ctx := context.Background()
	now := time.Now().UTC()

	task, err := store.CreateTask(ctx, createTaskRequest("slow", "group-a"))
	assert.Nil(t, err)
	store.setTaskFields(t, task.Id, func(task *data_models.Task) {
		startedAt := now.Add(-2 * time.Hour)
		// heartbeats kept coming, but the completion window is blown
		heartbeatAt := now.Add(-time.Minute)
		task.State = data_models.TaskStateStarted
		task.StartedAt = &startedAt
		task.LastHeartbeatAt = &heartbeatAt
		task.LastStateTransitionAt = startedAt
		task.Timeouts = data_models.TimeoutSettings{
			CreatedToStartedSecs: 3600, StartedToCompletedSecs: 3600, HeartbeatSecs: 600,
		}
	})

	sweeper.sweepOnce()

	loaded, err := store.GetTask(ctx, task.Id)
	assert.Nil(t, err)
	assert.Equal(t, data_models.TaskStateExpired, loaded.State)
	assert.Equal(t, []string{task.Id}, aborts.aborted)
}

func TestSweepPurgesOldRows(t *testing.T) {
	store := newFakeTaskStore()
	sweeper, _, _ := newTestSweeper(store)
	ctx := context.Background()
	now := time.Now().UTC()

	oldTask, err := store.CreateTask(ctx, createTaskRequest("old", "group-old"))
	assert.Nil(t, err)
	store.setTaskFields(t, oldTask.Id, func(task *data_models.Task) {
		task.State = data_models.TaskStateSucceeded
		task.CreatedAt = now.Add(-10 * 24 * time.Hour)
		task.LastStateTransitionAt = now.Add(-8 * 24 * time.Hour)
	})

	recentTask, err := store.CreateTask(ctx, createTaskRequest("recent", "group-recent"))
	assert.Nil(t, err)
	store.setTaskFields(t, recentTask.Id, func(task *data_models.Task) {
		task.State = data_models.TaskStateFailed
		task.CreatedAt = now
		task.LastStateTransitionAt = now
	})

	store.Lock()
	staleAddedAt := now.Add(-30 * 24 * time.Hour)
	store.groups["group-old"].LastTaskAddedAt = &staleAddedAt
	recentAddedAt := now
	store.groups["group-recent"].LastTaskAddedAt = &recentAddedAt
	store.Unlock()

	schedule, err := store.UpsertSchedule(ctx, data_models.UpsertScheduleRequest{
		Name: "dead-schedule", GroupKey: "group-old",
		State: data_models.ScheduleStateStarted, Frequency: time.Minute, StartsAt: now,
	})
	assert.Nil(t, err)
	_, err = store.TransitionSchedule(ctx, schedule.Id,
		[]data_models.ScheduleState{data_models.ScheduleStateStarted}, data_models.ScheduleStateDeleted)
	assert.Nil(t, err)
	store.Lock()
	deletedAt := now.Add(-8 * 24 * time.Hour)
	store.schedules[schedule.Id].DeletedAt = &deletedAt
	store.Unlock()

	sweeper.sweepOnce()

	loaded, err := store.GetTask(ctx, oldTask.Id)
	assert.Nil(t, err)
	assert.Nil(t, loaded)
	loaded, err = store.GetTask(ctx, recentTask.Id)
	assert.Nil(t, err)
	assert.NotNil(t, loaded)

	group, err := store.GetGroup(ctx, "group-old")
	assert.Nil(t, err)
	assert.Nil(t, group)
	group, err = store.GetGroup(ctx, "group-recent")
	assert.Nil(t, err)
	assert.NotNil(t, group)

	purged, err := store.GetSchedule(ctx, schedule.Id)
	assert.Nil(t, err)
	assert.Nil(t, purged)
}
