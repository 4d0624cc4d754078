// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/common/metrics"
	"github.com/flowqio/flowq/config"
	"github.com/flowqio/flowq/persistence/data_models"
)

// AbortTaskMessage is the body POSTed to every runner's abort endpoint
type AbortTaskMessage struct {
	TaskId string `json:"taskId"`
	State  string `json:"state"`
}

// AbortDispatcher fans an abort out to the runners of a tenant. The
// orchestrator does not know which runner executes a task, so it writes the
// abort flag first (the durable backstop) and then broadcasts to every
// registered runner of the tenant; the one holding the task stops it, the
// others ignore the call.
type AbortDispatcher struct {
	cfg        config.RunnersConfig
	registry   Registry
	flags      AbortFlagStore
	httpClient *http.Client
	logger     log.Logger
}

func NewAbortDispatcher(
	cfg config.RunnersConfig, registry Registry, flags AbortFlagStore, logger log.Logger,
) *AbortDispatcher {
	return &AbortDispatcher{
		cfg:      cfg,
		registry: registry,
		flags:    flags,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger,
	}
}

func (d *AbortDispatcher) NotifyAbort(ctx context.Context, task data_models.Task) error {
	metrics.AbortsRequested.WithLabelValues(string(task.State)).Inc()

	// the flag must be durable before any RPC: a runner that misses the
	// broadcast still sees the flag on its next check
	err := d.flags.SetAbortFlag(ctx, task.Id)
	if err != nil {
		return err
	}

	registrations, err := d.registry.ListRunners(ctx, task.Tenant)
	if err != nil {
		return err
	}
	if len(registrations) == 0 {
		d.logger.Warn("no registered runners to abort task",
			tag.TaskId(task.Id), tag.Tenant(task.Tenant))
		return nil
	}

	message := AbortTaskMessage{
		TaskId: task.Id,
		State:  string(task.State),
	}

	var mu sync.Mutex
	var combined error
	var wg sync.WaitGroup
	for _, registration := range registrations {
		registration := registration
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.postAbort(ctx, registration, message)
			if err != nil {
				d.logger.Error("failed to send abort to runner",
					tag.Error(err), tag.TaskId(task.Id), tag.RunnerId(registration.RunnerId))
				mu.Lock()
				combined = multierr.Append(combined, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return combined
}

func (d *AbortDispatcher) postAbort(
	ctx context.Context, registration Registration, message AbortTaskMessage,
) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	url := strings.TrimSuffix(registration.CallbackUrl, "/") + "/abort"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("runner %s responded %d to abort", registration.RunnerId, resp.StatusCode)
	}
	return nil
}
