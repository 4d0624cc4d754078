// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package data_models

import "time"

type Group struct {
	GroupKey        string     `json:"groupKey"`
	MaxConcurrency  int        `json:"maxConcurrency"`
	LastTaskAddedAt *time.Time `json:"lastTaskAddedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
