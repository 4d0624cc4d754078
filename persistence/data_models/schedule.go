// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package data_models

import (
	"encoding/json"
	"time"
)

type ScheduleState string

const (
	ScheduleStateStarted ScheduleState = "STARTED"
	ScheduleStatePaused  ScheduleState = "PAUSED"
	ScheduleStateDeleted ScheduleState = "DELETED"
)

type Schedule struct {
	Id                  string          `json:"id"`
	Name                string          `json:"name"`
	State               ScheduleState   `json:"state"`
	GroupKey            string          `json:"groupKey"`
	GroupMaxConcurrency int             `json:"groupMaxConcurrency"`
	Tenant              string          `json:"tenant"`
	TaskType            string          `json:"taskType"`
	Payload             json.RawMessage `json:"payload,omitempty"`

	StartsAt  time.Time     `json:"startsAt"`
	Frequency time.Duration `json:"frequencyMs"`
	NextDueAt time.Time     `json:"nextDueAt"`

	RetryMax int             `json:"retryMax"`
	Timeouts TimeoutSettings `json:"timeouts"`

	LastScheduledTaskId *string `json:"lastScheduledTaskId,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// UpsertScheduleRequest registers a recurring schedule; the name is the
// upsert key, so re-registering replaces the previous definition
type UpsertScheduleRequest struct {
	Name                string
	GroupKey            string
	GroupMaxConcurrency int
	Tenant              string
	TaskType            string
	Payload             json.RawMessage

	// State is the initial state, STARTED or PAUSED
	State ScheduleState

	StartsAt  time.Time
	Frequency time.Duration

	RetryMax int
	Timeouts TimeoutSettings
}
