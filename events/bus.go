// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"sync"
)

// Event is one bus notification. Listeners treat it as a wake-up and re-read
// authoritative state from the store, so delivery may be dropped under
// pressure without losing correctness.
type Event struct {
	Name   string `json:"name"`
	TaskId string `json:"taskId,omitempty"`
}

type Bus interface {
	// Publish never blocks: a subscriber with a full buffer misses the
	// notification and catches up on its next poll
	Publish(event Event)
	// Subscribe registers a listener on the event name and returns the
	// delivery channel plus a cancel func that must be called to
	// unsubscribe. There is no limit on listeners per name.
	Subscribe(name string) (<-chan Event, func())
}

type inMemoryBus struct {
	sync.Mutex

	nextSubscriptionId int64
	subscribers        map[string]map[int64]chan Event
}

func NewInMemoryBus() Bus {
	return &inMemoryBus{
		subscribers: map[string]map[int64]chan Event{},
	}
}

func (b *inMemoryBus) Publish(event Event) {
	b.Lock()
	defer b.Unlock()

	for _, ch := range b.subscribers[event.Name] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *inMemoryBus) Subscribe(name string) (<-chan Event, func()) {
	b.Lock()
	defer b.Unlock()

	id := b.nextSubscriptionId
	b.nextSubscriptionId++

	ch := make(chan Event, 1)
	if b.subscribers[name] == nil {
		b.subscribers[name] = map[int64]chan Event{}
	}
	b.subscribers[name][id] = ch

	return ch, func() {
		b.Lock()
		defer b.Unlock()
		delete(b.subscribers[name], id)
		if len(b.subscribers[name]) == 0 {
			delete(b.subscribers, name)
		}
	}
}
