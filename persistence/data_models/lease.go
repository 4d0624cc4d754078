// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package data_models

import "time"

// Lease is one leader lease row; whoever last wrote the row before its
// expiry is the leader for LeaderKey
type Lease struct {
	LeaderKey string
	NodeId    string
	ExpiresAt time.Time
}
