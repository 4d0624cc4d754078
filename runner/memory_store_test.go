// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flowqio/flowq/config"
)

func newTestMemoryStore(registrationTTL, abortFlagTTL time.Duration) KVStore {
	return NewMemoryKVStore(config.RunnersConfig{
		RegistrationTTL: registrationTTL,
		AbortFlagTTL:    abortFlagTTL,
	})
}

func TestRegisterAndListRunnersByTenant(t *testing.T) {
	store := newTestMemoryStore(time.Minute, time.Minute)
	ctx := context.Background()

	err := store.Register(ctx, Registration{
		RunnerId: "runner-1", Tenant: "tenant-a", CallbackUrl: "http://runner-1:9000",
	})
	assert.Nil(t, err)
	err = store.Register(ctx, Registration{
		RunnerId: "runner-2", Tenant: "tenant-a", CallbackUrl: "http://runner-2:9000",
	})
	assert.Nil(t, err)
	err = store.Register(ctx, Registration{
		RunnerId: "runner-3", Tenant: "tenant-b", CallbackUrl: "http://runner-3:9000",
	})
	assert.Nil(t, err)

	registrations, err := store.ListRunners(ctx, "tenant-a")
	assert.Nil(t, err)
	assert.Equal(t, 2, len(registrations))

	registrations, err = store.ListRunners(ctx, "tenant-c")
	assert.Nil(t, err)
	assert.Equal(t, 0, len(registrations))
}

func TestRegisterValidation(t *testing.T) {
	store := newTestMemoryStore(time.Minute, time.Minute)
	ctx := context.Background()

	err := store.Register(ctx, Registration{Tenant: "tenant-a", CallbackUrl: "http://r:9000"})
	assert.NotNil(t, err)

	err = store.Register(ctx, Registration{RunnerId: "runner-1", Tenant: "tenant-a"})
	assert.NotNil(t, err)
}

func TestReRegisterRenewsTheEntry(t *testing.T) {
	store := newTestMemoryStore(100*time.Millisecond, time.Minute)
	ctx := context.Background()

	registration := Registration{
		RunnerId: "runner-1", Tenant: "tenant-a", CallbackUrl: "http://runner-1:9000",
	}
	err := store.Register(ctx, registration)
	assert.Nil(t, err)

	time.Sleep(60 * time.Millisecond)
	err = store.Register(ctx, registration)
	assert.Nil(t, err)
	time.Sleep(60 * time.Millisecond)

	// the renewal reset the clock, so the entry is still live
	registrations, err := store.ListRunners(ctx, "tenant-a")
	assert.Nil(t, err)
	assert.Equal(t, 1, len(registrations))
}

func TestRegistrationExpires(t *testing.T) {
	store := newTestMemoryStore(30*time.Millisecond, time.Minute)
	ctx := context.Background()

	err := store.Register(ctx, Registration{
		RunnerId: "runner-1", Tenant: "tenant-a", CallbackUrl: "http://runner-1:9000",
	})
	assert.Nil(t, err)

	time.Sleep(60 * time.Millisecond)

	registrations, err := store.ListRunners(ctx, "tenant-a")
	assert.Nil(t, err)
	assert.Equal(t, 0, len(registrations))
}

func TestAbortFlagLifecycle(t *testing.T) {
	store := newTestMemoryStore(time.Minute, 30*time.Millisecond)
	ctx := context.Background()

	aborted, err := store.IsTaskAborted(ctx, "task-1")
	assert.Nil(t, err)
	assert.False(t, aborted)

	err = store.SetAbortFlag(ctx, "task-1")
	assert.Nil(t, err)

	aborted, err = store.IsTaskAborted(ctx, "task-1")
	assert.Nil(t, err)
	assert.True(t, aborted)

	time.Sleep(60 * time.Millisecond)

	aborted, err = store.IsTaskAborted(ctx, "task-1")
	assert.Nil(t, err)
	assert.False(t, aborted)
}
