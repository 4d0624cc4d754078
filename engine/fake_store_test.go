// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowqio/flowq/persistence"
	"github.com/flowqio/flowq/persistence/data_models"
)

// fakeTaskStore is an in-memory persistence.TaskStore with the same guard
// semantics as the sql implementation, for engine tests without a database
type fakeTaskStore struct {
	sync.Mutex

	nextId    int
	tasks     map[string]*data_models.Task
	groups    map[string]*data_models.Group
	schedules map[string]*data_models.Schedule
}

var _ persistence.TaskStore = (*fakeTaskStore)(nil)

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{
		tasks:     map[string]*data_models.Task{},
		groups:    map[string]*data_models.Group{},
		schedules: map[string]*data_models.Schedule{},
	}
}

func (f *fakeTaskStore) Close() error { return nil }

// each task gets a strictly increasing creation time so FIFO order is
// deterministic in tests
func (f *fakeTaskStore) nextCreationTime() time.Time {
	f.nextId++
	return time.Unix(0, int64(f.nextId)*int64(time.Millisecond)).UTC()
}

func (f *fakeTaskStore) CreateTask(
	_ context.Context, request data_models.CreateTaskRequest,
) (*data_models.Task, error) {
	f.Lock()
	defer f.Unlock()

	now := f.nextCreationTime()
	task := &data_models.Task{
		Id:                    fmt.Sprintf("task-%d", f.nextId),
		Name:                  request.Name,
		GroupKey:              request.GroupKey,
		Tenant:                request.Tenant,
		TaskType:              request.TaskType,
		Payload:               request.Payload,
		State:                 data_models.TaskStateCreated,
		RetryCount:            request.RetryCount,
		RetryMax:              request.RetryMax,
		Timeouts:              request.Timeouts,
		CreatedAt:             now,
		LastStateTransitionAt: now,
		ScheduleId:            request.ScheduleId,
	}
	f.tasks[task.Id] = task
	f.groups[request.GroupKey] = &data_models.Group{
		GroupKey:        request.GroupKey,
		MaxConcurrency:  request.GroupMaxConcurrency,
		LastTaskAddedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskStore) DequeueTasks(
	_ context.Context, groupKey string, limit int,
) ([]data_models.Task, error) {
	f.Lock()
	defer f.Unlock()

	group, ok := f.groups[groupKey]
	if !ok {
		return nil, nil
	}
	started := 0
	var created []*data_models.Task
	for _, task := range f.tasks {
		if task.GroupKey != groupKey {
			continue
		}
		switch task.State {
		case data_models.TaskStateStarted:
			started++
		case data_models.TaskStateCreated:
			created = append(created, task)
		}
	}
	capacity := group.MaxConcurrency - started
	if capacity <= 0 {
		return nil, nil
	}
	if limit > capacity {
		limit = capacity
	}
	sort.Slice(created, func(i, j int) bool {
		return created[i].CreatedAt.Before(created[j].CreatedAt)
	})
	if len(created) > limit {
		created = created[:limit]
	}

	now := time.Now().UTC()
	var result []data_models.Task
	for _, task := range created {
		task.State = data_models.TaskStateStarted
		task.StartedAt = &now
		task.LastHeartbeatAt = &now
		task.LastStateTransitionAt = now
		result = append(result, *task)
	}
	return result, nil
}

func (f *fakeTaskStore) GetTask(_ context.Context, taskId string) (*data_models.Task, error) {
	f.Lock()
	defer f.Unlock()
	task, ok := f.tasks[taskId]
	if !ok {
		return nil, nil
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskStore) SearchTasks(
	_ context.Context, request data_models.TaskSearchRequest,
) ([]data_models.Task, error) {
	f.Lock()
	defer f.Unlock()

	var result []data_models.Task
	for _, task := range f.tasks {
		if request.GroupKey != "" && task.GroupKey != request.GroupKey {
			continue
		}
		if request.Tenant != "" && task.Tenant != request.Tenant {
			continue
		}
		if len(request.States) > 0 && !containsState(request.States, task.State) {
			continue
		}
		result = append(result, *task)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func containsState(states []data_models.TaskState, state data_models.TaskState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

func (f *fakeTaskStore) TransitionTask(
	_ context.Context, request data_models.TransitionTaskRequest,
) (*data_models.Task, error) {
	f.Lock()
	defer f.Unlock()

	task, ok := f.tasks[request.TaskId]
	if !ok || !containsState(request.FromStates, task.State) {
		return nil, nil
	}
	now := time.Now().UTC()
	task.State = request.ToState
	task.Output = request.Output
	task.Error = request.Error
	task.LastStateTransitionAt = now
	task.TerminatedAt = &now
	copied := *task
	return &copied, nil
}

func (f *fakeTaskStore) HeartbeatTask(_ context.Context, taskId string) (bool, error) {
	f.Lock()
	defer f.Unlock()

	task, ok := f.tasks[taskId]
	if !ok || task.State != data_models.TaskStateStarted {
		return false, nil
	}
	now := time.Now().UTC()
	task.LastHeartbeatAt = &now
	return true, nil
}

func (f *fakeTaskStore) ExpireTimedOutTasks(
	_ context.Context, now time.Time, limit int,
) ([]data_models.Task, error) {
	f.Lock()
	defer f.Unlock()

	var expired []data_models.Task
	for _, task := range f.tasks {
		if len(expired) >= limit {
			break
		}
		if !taskTimedOut(task, now) {
			continue
		}
		task.State = data_models.TaskStateExpired
		task.LastStateTransitionAt = now
		terminatedAt := now
		task.TerminatedAt = &terminatedAt
		expired = append(expired, *task)
	}
	return expired, nil
}

func taskTimedOut(task *data_models.Task, now time.Time) bool {
	switch task.State {
	case data_models.TaskStateCreated:
		deadline := task.CreatedAt.Add(time.Duration(task.Timeouts.CreatedToStartedSecs) * time.Second)
		return deadline.Before(now)
	case data_models.TaskStateStarted:
		heartbeatDeadline := task.LastHeartbeatAt.Add(time.Duration(task.Timeouts.HeartbeatSecs) * time.Second)
		completionDeadline := task.LastStateTransitionAt.Add(
			time.Duration(task.Timeouts.StartedToCompletedSecs) * time.Second)
		return heartbeatDeadline.Before(now) || completionDeadline.Before(now)
	}
	return false
}

func (f *fakeTaskStore) DeleteTerminatedTasksBefore(
	_ context.Context, cutoff time.Time, _ int,
) (int64, error) {
	f.Lock()
	defer f.Unlock()

	var deleted int64
	for id, task := range f.tasks {
		if task.State.IsTerminal() && task.LastStateTransitionAt.Before(cutoff) {
			delete(f.tasks, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeTaskStore) GetGroup(_ context.Context, groupKey string) (*data_models.Group, error) {
	f.Lock()
	defer f.Unlock()
	group, ok := f.groups[groupKey]
	if !ok {
		return nil, nil
	}
	copied := *group
	return &copied, nil
}

func (f *fakeTaskStore) DeleteIdleGroups(
	_ context.Context, cutoff time.Time, _ int,
) (int64, error) {
	f.Lock()
	defer f.Unlock()

	var deleted int64
	for key, group := range f.groups {
		if group.LastTaskAddedAt != nil && group.LastTaskAddedAt.Before(cutoff) {
			delete(f.groups, key)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeTaskStore) UpsertSchedule(
	_ context.Context, request data_models.UpsertScheduleRequest,
) (*data_models.Schedule, error) {
	f.Lock()
	defer f.Unlock()

	for _, existing := range f.schedules {
		if existing.Name == request.Name {
			existing.State = request.State
			existing.GroupKey = request.GroupKey
			existing.GroupMaxConcurrency = request.GroupMaxConcurrency
			existing.Payload = request.Payload
			existing.StartsAt = request.StartsAt
			existing.Frequency = request.Frequency
			existing.NextDueAt = request.StartsAt
			existing.DeletedAt = nil
			copied := *existing
			return &copied, nil
		}
	}

	f.nextId++
	now := time.Now().UTC()
	schedule := &data_models.Schedule{
		Id:                  fmt.Sprintf("schedule-%d", f.nextId),
		Name:                request.Name,
		State:               request.State,
		GroupKey:            request.GroupKey,
		GroupMaxConcurrency: request.GroupMaxConcurrency,
		Tenant:              request.Tenant,
		TaskType:            request.TaskType,
		Payload:             request.Payload,
		StartsAt:            request.StartsAt,
		Frequency:           request.Frequency,
		NextDueAt:           request.StartsAt,
		RetryMax:            request.RetryMax,
		Timeouts:            request.Timeouts,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	f.schedules[schedule.Id] = schedule
	copied := *schedule
	return &copied, nil
}

func (f *fakeTaskStore) GetSchedule(
	_ context.Context, scheduleId string,
) (*data_models.Schedule, error) {
	f.Lock()
	defer f.Unlock()
	schedule, ok := f.schedules[scheduleId]
	if !ok {
		return nil, nil
	}
	copied := *schedule
	return &copied, nil
}

func (f *fakeTaskStore) TransitionSchedule(
	_ context.Context, scheduleId string,
	fromStates []data_models.ScheduleState, toState data_models.ScheduleState,
) (*data_models.Schedule, error) {
	f.Lock()
	defer f.Unlock()

	schedule, ok := f.schedules[scheduleId]
	if !ok {
		return nil, nil
	}
	allowed := false
	for _, s := range fromStates {
		if schedule.State == s {
			allowed = true
		}
	}
	if !allowed {
		return nil, nil
	}
	now := time.Now().UTC()
	schedule.State = toState
	schedule.UpdatedAt = now
	if toState == data_models.ScheduleStateDeleted {
		schedule.DeletedAt = &now
	}
	copied := *schedule
	return &copied, nil
}

func (f *fakeTaskStore) TickDueSchedules(
	ctx context.Context, now time.Time, limit int,
) ([]data_models.Task, error) {
	f.Lock()
	var due []*data_models.Schedule
	for _, schedule := range f.schedules {
		if len(due) >= limit {
			break
		}
		if schedule.State != data_models.ScheduleStateStarted ||
			schedule.StartsAt.After(now) || schedule.NextDueAt.After(now) {
			continue
		}
		// a previous fire still in flight blocks the next one
		if schedule.LastScheduledTaskId != nil {
			if last, ok := f.tasks[*schedule.LastScheduledTaskId]; ok && !last.State.IsTerminal() {
				continue
			}
		}
		due = append(due, schedule)
	}
	f.Unlock()

	var created []data_models.Task
	for _, schedule := range due {
		task, err := f.CreateTask(ctx, data_models.CreateTaskRequest{
			Name:                schedule.Name,
			GroupKey:            schedule.GroupKey,
			GroupMaxConcurrency: schedule.GroupMaxConcurrency,
			Tenant:              schedule.Tenant,
			TaskType:            schedule.TaskType,
			Payload:             schedule.Payload,
			RetryMax:            schedule.RetryMax,
			Timeouts:            schedule.Timeouts,
			ScheduleId:          &schedule.Id,
		})
		if err != nil {
			return nil, err
		}
		f.Lock()
		schedule.NextDueAt = now.Add(schedule.Frequency)
		schedule.LastScheduledTaskId = &task.Id
		f.Unlock()
		created = append(created, *task)
	}
	return created, nil
}

func (f *fakeTaskStore) DeleteSchedulesRemovedBefore(
	_ context.Context, cutoff time.Time, _ int,
) (int64, error) {
	f.Lock()
	defer f.Unlock()

	var deleted int64
	for id, schedule := range f.schedules {
		if schedule.State == data_models.ScheduleStateDeleted &&
			schedule.DeletedAt != nil && schedule.DeletedAt.Before(cutoff) {
			delete(f.schedules, id)
			deleted++
		}
	}
	return deleted, nil
}
