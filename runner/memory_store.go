// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flowqio/flowq/config"
)

// memoryKVStore keeps registrations and abort flags in a TTL-pruned map.
// It only serves single-instance deployments without redis: a second
// orchestrator instance would not see these runners or flags.
type memoryKVStore struct {
	sync.Mutex

	cfg        config.RunnersConfig
	runners    map[string]memoryRegistration
	abortFlags map[string]time.Time
}

type memoryRegistration struct {
	registration Registration
	expiresAt    time.Time
}

func NewMemoryKVStore(cfg config.RunnersConfig) KVStore {
	return &memoryKVStore{
		cfg:        cfg,
		runners:    map[string]memoryRegistration{},
		abortFlags: map[string]time.Time{},
	}
}

func (s *memoryKVStore) Close() error {
	return nil
}

func (s *memoryKVStore) Register(_ context.Context, registration Registration) error {
	if registration.RunnerId == "" || registration.CallbackUrl == "" {
		return errors.New("runnerId and callbackUrl are required")
	}
	s.Lock()
	defer s.Unlock()
	s.runners[registration.Tenant+":"+registration.RunnerId] = memoryRegistration{
		registration: registration,
		expiresAt:    time.Now().Add(s.cfg.RegistrationTTL),
	}
	return nil
}

func (s *memoryKVStore) ListRunners(_ context.Context, tenant string) ([]Registration, error) {
	s.Lock()
	defer s.Unlock()

	now := time.Now()
	var registrations []Registration
	for key, entry := range s.runners {
		if now.After(entry.expiresAt) {
			delete(s.runners, key)
			continue
		}
		if entry.registration.Tenant == tenant {
			registrations = append(registrations, entry.registration)
		}
	}
	return registrations, nil
}

func (s *memoryKVStore) SetAbortFlag(_ context.Context, taskId string) error {
	s.Lock()
	defer s.Unlock()
	s.abortFlags[taskId] = time.Now().Add(s.cfg.AbortFlagTTL)
	return nil
}

func (s *memoryKVStore) IsTaskAborted(_ context.Context, taskId string) (bool, error) {
	s.Lock()
	defer s.Unlock()

	expiresAt, ok := s.abortFlags[taskId]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		delete(s.abortFlags, taskId)
		return false, nil
	}
	return true, nil
}
