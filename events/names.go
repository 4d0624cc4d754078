// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package events

// Event names are plain strings so any number of listeners can key on them.
// Created/started events are per group, completion events are per task.
func TaskCreatedEvent(groupKey string) string {
	return "task:created:" + groupKey
}

func TaskStartedEvent(groupKey string) string {
	return "task:started:" + groupKey
}

func TaskCompletedEvent(taskId string) string {
	return "task:completed:" + taskId
}
