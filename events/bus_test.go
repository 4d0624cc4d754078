// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscribeReceivesMatchingEvents(t *testing.T) {
	bus := NewInMemoryBus()
	ch, cancel := bus.Subscribe(TaskCreatedEvent("group-a"))
	defer cancel()

	bus.Publish(Event{Name: TaskCreatedEvent("group-a"), TaskId: "task-1"})

	select {
	case event := <-ch:
		assert.Equal(t, "task-1", event.TaskId)
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}

func TestSubscribeIgnoresOtherNames(t *testing.T) {
	bus := NewInMemoryBus()
	ch, cancel := bus.Subscribe(TaskCreatedEvent("group-a"))
	defer cancel()

	bus.Publish(Event{Name: TaskCreatedEvent("group-b"), TaskId: "task-1"})
	bus.Publish(Event{Name: TaskCompletedEvent("task-1"), TaskId: "task-1"})

	select {
	case event := <-ch:
		t.Fatalf("unexpected event %v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewInMemoryBus()
	_, cancel := bus.Subscribe(TaskCreatedEvent("group-a"))
	defer cancel()

	// nobody drains the channel; overflow is dropped, not queued
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(Event{Name: TaskCreatedEvent("group-a"), TaskId: "task-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	bus := NewInMemoryBus()
	ch1, cancel1 := bus.Subscribe(TaskCompletedEvent("task-1"))
	defer cancel1()
	ch2, cancel2 := bus.Subscribe(TaskCompletedEvent("task-1"))
	defer cancel2()

	bus.Publish(Event{Name: TaskCompletedEvent("task-1"), TaskId: "task-1"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case event := <-ch:
			assert.Equal(t, "task-1", event.TaskId)
		case <-time.After(time.Second):
			t.Fatal("expected an event on every subscription")
		}
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := NewInMemoryBus()
	ch, cancel := bus.Subscribe(TaskStartedEvent("group-a"))
	cancel()

	bus.Publish(Event{Name: TaskStartedEvent("group-a"), TaskId: "task-1"})

	select {
	case event := <-ch:
		t.Fatalf("unexpected event %v after cancel", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	bus := NewInMemoryBus()
	_, cancel := bus.Subscribe(TaskCreatedEvent("group-a"))
	cancel()
	cancel()

	// the bus still works for everyone else
	ch, cancel2 := bus.Subscribe(TaskCreatedEvent("group-a"))
	defer cancel2()
	bus.Publish(Event{Name: TaskCreatedEvent("group-a"), TaskId: "task-2"})

	select {
	case event := <-ch:
		assert.Equal(t, "task-2", event.TaskId)
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}
