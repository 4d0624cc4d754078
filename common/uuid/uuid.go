// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package uuid

import (
	"github.com/google/uuid"
)

// MustNewUUID returns a new random v4 uuid string, panicking only when the
// system entropy source is broken
func MustNewUUID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		panic(err)
	}
	return id.String()
}

// ParseUUID validates that str is a uuid
func ParseUUID(str string) (string, error) {
	id, err := uuid.Parse(str)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
