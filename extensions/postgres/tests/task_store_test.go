// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flowqio/flowq/persistence/data_models"
)

var groupSeq int

func uniqueGroupKey() string {
	groupSeq++
	return fmt.Sprintf("it-group-%d-%d", time.Now().UnixNano(), groupSeq)
}

func newCreateTaskRequest(groupKey string, maxConcurrency int) data_models.CreateTaskRequest {
	return data_models.CreateTaskRequest{
		Name:                "integration-task",
		GroupKey:            groupKey,
		GroupMaxConcurrency: maxConcurrency,
		Tenant:              "tenant-it",
		TaskType:            "sync",
		Payload:             json.RawMessage(`{"connection":"c1"}`),
		RetryMax:            1,
		Timeouts: data_models.TimeoutSettings{
			CreatedToStartedSecs:   3600,
			StartedToCompletedSecs: 3600,
			HeartbeatSecs:          600,
		},
	}
}

func TestTaskLifecycleRoundTrip(t *testing.T) {
	ass := assert.New(t)
	ctx := context.Background()
	groupKey := uniqueGroupKey()

	created, err := store.CreateTask(ctx, newCreateTaskRequest(groupKey, 1))
	ass.Nil(err)
	ass.Equal(data_models.TaskStateCreated, created.State)

	loaded, err := store.GetTask(ctx, created.Id)
	ass.Nil(err)
	ass.Equal(created.Id, loaded.Id)
	ass.Equal(json.RawMessage(`{"connection":"c1"}`), loaded.Payload)

	tasks, err := store.DequeueTasks(ctx, groupKey, 10)
	ass.Nil(err)
	ass.Equal(1, len(tasks))
	ass.Equal(data_models.TaskStateStarted, tasks[0].State)
	ass.NotNil(tasks[0].StartedAt)

	renewed, err := store.HeartbeatTask(ctx, created.Id)
	ass.Nil(err)
	ass.True(renewed)

	succeeded, err := store.TransitionTask(ctx, data_models.TransitionTaskRequest{
		TaskId:     created.Id,
		FromStates: []data_models.TaskState{data_models.TaskStateStarted},
		ToState:    data_models.TaskStateSucceeded,
		Output:     json.RawMessage(`{"records":42}`),
	})
	ass.Nil(err)
	ass.NotNil(succeeded)
	ass.Equal(data_models.TaskStateSucceeded, succeeded.State)
	ass.Equal(json.RawMessage(`{"records":42}`), succeeded.Output)
	ass.Nil(succeeded.Error)

	// the guard rejects a second terminal transition
	again, err := store.TransitionTask(ctx, data_models.TransitionTaskRequest{
		TaskId:     created.Id,
		FromStates: []data_models.TaskState{data_models.TaskStateStarted},
		ToState:    data_models.TaskStateFailed,
	})
	ass.Nil(err)
	ass.Nil(again)

	renewed, err = store.HeartbeatTask(ctx, created.Id)
	ass.Nil(err)
	ass.False(renewed)
}

func TestGetTaskMissingReturnsNil(t *testing.T) {
	ass := assert.New(t)

	task, err := store.GetTask(context.Background(), "019921d0-0000-7000-8000-000000000000")
	ass.Nil(err)
	ass.Nil(task)
}

func TestDequeueHonorsMaxConcurrencyAndFIFO(t *testing.T) {
	ass := assert.New(t)
	ctx := context.Background()
	groupKey := uniqueGroupKey()

	var createdIds []string
	for i := 0; i < 5; i++ {
		task, err := store.CreateTask(ctx, newCreateTaskRequest(groupKey, 2))
		ass.Nil(err)
		createdIds = append(createdIds, task.Id)
	}

	tasks, err := store.DequeueTasks(ctx, groupKey, 10)
	ass.Nil(err)
	ass.Equal(2, len(tasks))
	ass.Equal(createdIds[0], tasks[0].Id)
	ass.Equal(createdIds[1], tasks[1].Id)

	// group saturated
	tasks, err = store.DequeueTasks(ctx, groupKey, 10)
	ass.Nil(err)
	ass.Equal(0, len(tasks))

	// finishing one frees one slot
	_, err = store.TransitionTask(ctx, data_models.TransitionTaskRequest{
		TaskId:     createdIds[0],
		FromStates: []data_models.TaskState{data_models.TaskStateStarted},
		ToState:    data_models.TaskStateSucceeded,
	})
	ass.Nil(err)

	tasks, err = store.DequeueTasks(ctx, groupKey, 10)
	ass.Nil(err)
	ass.Equal(1, len(tasks))
	ass.Equal(createdIds[2], tasks[0].Id)
}

func TestConcurrentDequeueHandsOutDisjointTasks(t *testing.T) {
	ass := assert.New(t)
	ctx := context.Background()
	groupKey := uniqueGroupKey()

	for i := 0; i < 10; i++ {
		_, err := store.CreateTask(ctx, newCreateTaskRequest(groupKey, 10))
		ass.Nil(err)
	}

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tasks, err := store.DequeueTasks(ctx, groupKey, 2)
			ass.Nil(err)
			mu.Lock()
			defer mu.Unlock()
			for _, task := range tasks {
				seen[task.Id]++
			}
		}()
	}
	wg.Wait()

	ass.Equal(10, len(seen))
	for taskId, count := range seen {
		ass.Equal(1, count, taskId)
	}
}

func TestSearchTasksFilters(t *testing.T) {
	ass := assert.New(t)
	ctx := context.Background()
	groupKey := uniqueGroupKey()

	created, err := store.CreateTask(ctx, newCreateTaskRequest(groupKey, 1))
	ass.Nil(err)

	tasks, err := store.SearchTasks(ctx, data_models.TaskSearchRequest{
		GroupKey: groupKey,
		States:   []data_models.TaskState{data_models.TaskStateCreated},
	})
	ass.Nil(err)
	ass.Equal(1, len(tasks))
	ass.Equal(created.Id, tasks[0].Id)

	tasks, err = store.SearchTasks(ctx, data_models.TaskSearchRequest{
		GroupKey: groupKey,
		States:   []data_models.TaskState{data_models.TaskStateSucceeded},
	})
	ass.Nil(err)
	ass.Equal(0, len(tasks))

	tasks, err = store.SearchTasks(ctx, data_models.TaskSearchRequest{
		TaskIds: []string{created.Id},
	})
	ass.Nil(err)
	ass.Equal(1, len(tasks))
}

func TestExpireTimedOutTasks(t *testing.T) {
	ass := assert.New(t)
	ctx := context.Background()
	groupKey := uniqueGroupKey()

	request := newCreateTaskRequest(groupKey, 1)
	request.Timeouts.CreatedToStartedSecs = 1
	created, err := store.CreateTask(ctx, request)
	ass.Nil(err)

	// nothing is due yet
	expired, err := store.ExpireTimedOutTasks(ctx, time.Now().UTC(), 100)
	ass.Nil(err)
	for _, task := range expired {
		ass.NotEqual(created.Id, task.Id)
	}

	// pretend the window elapsed
	expired, err = store.ExpireTimedOutTasks(ctx, time.Now().UTC().Add(time.Hour), 100)
	ass.Nil(err)
	found := false
	for _, task := range expired {
		if task.Id == created.Id {
			found = true
			ass.Equal(data_models.TaskStateExpired, task.State)
			ass.Nil(task.Output)
			ass.Nil(task.Error)
		}
	}
	ass.True(found)
}

func TestGetGroupAfterCreate(t *testing.T) {
	ass := assert.New(t)
	ctx := context.Background()
	groupKey := uniqueGroupKey()

	_, err := store.CreateTask(ctx, newCreateTaskRequest(groupKey, 3))
	ass.Nil(err)

	group, err := store.GetGroup(ctx, groupKey)
	ass.Nil(err)
	ass.NotNil(group)
	ass.Equal(3, group.MaxConcurrency)
	ass.NotNil(group.LastTaskAddedAt)

	missing, err := store.GetGroup(ctx, uniqueGroupKey())
	ass.Nil(err)
	ass.Nil(missing)
}
