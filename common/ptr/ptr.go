// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package ptr

func Any[T any](v T) *T {
	return &v
}
