// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"time"

	"github.com/flowqio/flowq/persistence/data_models"
)

type CreateTaskRequest struct {
	Name                string                      `json:"name"`
	GroupKey            string                      `json:"groupKey"`
	GroupMaxConcurrency int                         `json:"groupMaxConcurrency,omitempty"`
	Tenant              string                      `json:"tenant,omitempty"`
	TaskType            string                      `json:"taskType,omitempty"`
	Payload             json.RawMessage             `json:"payload,omitempty"`
	RetryMax            int                         `json:"retryMax,omitempty"`
	Timeouts            data_models.TimeoutSettings `json:"timeouts,omitempty"`
}

type CreateTaskResponse struct {
	TaskId string `json:"taskId"`
}

type UpsertScheduleRequest struct {
	Name                string                      `json:"name"`
	GroupKey            string                      `json:"groupKey"`
	GroupMaxConcurrency int                         `json:"groupMaxConcurrency,omitempty"`
	Tenant              string                      `json:"tenant,omitempty"`
	TaskType            string                      `json:"taskType,omitempty"`
	Payload             json.RawMessage             `json:"payload,omitempty"`
	RetryMax            int                         `json:"retryMax,omitempty"`
	Timeouts            data_models.TimeoutSettings `json:"timeouts,omitempty"`

	// State is the initial state, STARTED (default) or PAUSED
	State data_models.ScheduleState `json:"state,omitempty"`
	// StartsAt defaults to now when omitted
	StartsAt    *time.Time `json:"startsAt,omitempty"`
	FrequencyMs int64      `json:"frequencyMs"`
}

type UpsertScheduleResponse struct {
	ScheduleId string `json:"scheduleId"`
}

type UpdateScheduleStateRequest struct {
	State data_models.ScheduleState `json:"state"`
}

type DequeueResponse struct {
	Tasks []data_models.Task `json:"tasks"`
}

const (
	TaskActionSucceed = "succeed"
	TaskActionFail    = "fail"
	TaskActionCancel  = "cancel"
)

type UpdateTaskRequest struct {
	Action string          `json:"action"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

type TaskOutputResponse struct {
	TaskId string                `json:"taskId"`
	State  data_models.TaskState `json:"state"`
	Output json.RawMessage       `json:"output,omitempty"`
	Error  json.RawMessage       `json:"error,omitempty"`
}

type SearchTasksRequest struct {
	Ids        []string                `json:"ids,omitempty"`
	GroupKey   string                  `json:"groupKey,omitempty"`
	Tenant     string                  `json:"tenant,omitempty"`
	States     []data_models.TaskState `json:"states,omitempty"`
	ScheduleId string                  `json:"scheduleId,omitempty"`
	Limit      int                     `json:"limit,omitempty"`
}

type SearchTasksResponse struct {
	Tasks []data_models.Task `json:"tasks"`
}

type RegisterRunnerRequest struct {
	RunnerId    string `json:"runnerId"`
	Tenant      string `json:"tenant,omitempty"`
	CallbackUrl string `json:"callbackUrl"`
}
