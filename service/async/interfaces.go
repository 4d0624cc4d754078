// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package async

import "context"

type Server interface {
	// Start will start running on the background
	Start() error
	Stop(ctx context.Context) error
}
