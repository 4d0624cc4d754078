// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/flowqio/flowq/config"
)

const runnerKeyPrefix = "flowq:runner:"
const abortFlagKeyPrefix = "flowq:abort:"

const listRunnersScanCount = 100

type redisKVStore struct {
	client *redis.Client
	cfg    config.RunnersConfig
}

// NewRedisKVStore backs the registry and the abort flags with one redis
// database so every orchestrator instance sees the same runners and flags
func NewRedisKVStore(cfg config.RunnersConfig) KVStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &redisKVStore{
		client: client,
		cfg:    cfg,
	}
}

func (s *redisKVStore) Close() error {
	return s.client.Close()
}

func runnerKey(tenant, runnerId string) string {
	return runnerKeyPrefix + tenant + ":" + runnerId
}

func (s *redisKVStore) Register(ctx context.Context, registration Registration) error {
	if registration.RunnerId == "" || registration.CallbackUrl == "" {
		return errors.New("runnerId and callbackUrl are required")
	}
	if strings.Contains(registration.Tenant, ":") || strings.Contains(registration.RunnerId, ":") {
		return errors.New("tenant and runnerId must not contain ':'")
	}
	// the ttl makes deregistration implicit: a runner that stops renewing
	// disappears from the fan-out set
	return s.client.Set(ctx,
		runnerKey(registration.Tenant, registration.RunnerId),
		registration.CallbackUrl,
		s.cfg.RegistrationTTL,
	).Err()
}

func (s *redisKVStore) ListRunners(ctx context.Context, tenant string) ([]Registration, error) {
	prefix := runnerKeyPrefix + tenant + ":"

	var registrations []Registration
	iter := s.client.Scan(ctx, 0, prefix+"*", listRunnersScanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		callbackUrl, err := s.client.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// expired between scan and get
				continue
			}
			return nil, err
		}
		registrations = append(registrations, Registration{
			RunnerId:    strings.TrimPrefix(key, prefix),
			Tenant:      tenant,
			CallbackUrl: callbackUrl,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return registrations, nil
}

func (s *redisKVStore) SetAbortFlag(ctx context.Context, taskId string) error {
	return s.client.Set(ctx, abortFlagKeyPrefix+taskId, "1", s.cfg.AbortFlagTTL).Err()
}

func (s *redisKVStore) IsTaskAborted(ctx context.Context, taskId string) (bool, error) {
	_, err := s.client.Get(ctx, abortFlagKeyPrefix+taskId).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
