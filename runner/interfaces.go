// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
)

// Registration is one live runner of a tenant. Runners re-register
// periodically; an entry that is not renewed within the registration ttl
// falls out of the registry on its own.
type Registration struct {
	RunnerId    string `json:"runnerId"`
	Tenant      string `json:"tenant"`
	CallbackUrl string `json:"callbackUrl"`
}

// Registry tracks which runners serve which tenant, shared across all
// orchestrator instances
type Registry interface {
	Register(ctx context.Context, registration Registration) error
	ListRunners(ctx context.Context, tenant string) ([]Registration, error)
	Close() error
}

// AbortFlagStore is the backstop of the abort fan-out: the flag outlives a
// missed abort RPC, and a runner consults it before reporting progress
type AbortFlagStore interface {
	SetAbortFlag(ctx context.Context, taskId string) error
	IsTaskAborted(ctx context.Context, taskId string) (bool, error)
}

// KVStore is what the redis client provides to this package
type KVStore interface {
	Registry
	AbortFlagStore
}
