// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package tag

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const LoggingCallAtKey = "logging-call-at"

// Tag is the interface for logging system
type Tag struct {
	// keep this field private
	field zap.Field
}

// Field returns a zap field
func (t *Tag) Field() zap.Field {
	return t.field
}

func newStringTag(key string, value string) Tag {
	return Tag{
		field: zap.String(key, value),
	}
}

func newInt64(key string, value int64) Tag {
	return Tag{
		field: zap.Int64(key, value),
	}
}

func newInt(key string, value int) Tag {
	return Tag{
		field: zap.Int(key, value),
	}
}

func newTimeTag(key string, value time.Time) Tag {
	return Tag{
		field: zap.Time(key, value),
	}
}

func newObjectTag(key string, value interface{}) Tag {
	return Tag{
		field: zap.String(key, fmt.Sprintf("%v", value)),
	}
}

func newErrorTag(key string, value error) Tag {
	//NOTE zap already chosen "error" as key
	return Tag{
		field: zap.Error(value),
	}
}

// TAGS

func Error(err error) Tag {
	return newErrorTag("error", err)
}

func Service(sv string) Tag {
	return newStringTag("service", sv)
}

func Message(msg string) Tag {
	return newStringTag("message", msg)
}

func TaskId(id string) Tag {
	return newStringTag("taskId", id)
}

func TaskName(name string) Tag {
	return newStringTag("taskName", name)
}

func TaskState(state string) Tag {
	return newStringTag("taskState", state)
}

func GroupKey(key string) Tag {
	return newStringTag("groupKey", key)
}

func ScheduleId(id string) Tag {
	return newStringTag("scheduleId", id)
}

func Tenant(tenant string) Tag {
	return newStringTag("tenant", tenant)
}

func RunnerId(id string) Tag {
	return newStringTag("runnerId", id)
}

func NodeId(id string) Tag {
	return newStringTag("nodeId", id)
}

func LeaderKey(key string) Tag {
	return newStringTag("leaderKey", key)
}

func EventName(name string) Tag {
	return newStringTag("eventName", name)
}

func Counter(n int) Tag {
	return newInt("counter", n)
}

func RetryCount(n int) Tag {
	return newInt("retryCount", n)
}

func StatusCode(status int) Tag {
	return newInt("status", status)
}

func ExpiresAt(t time.Time) Tag {
	return newTimeTag("expiresAt", t)
}

func Latency(d time.Duration) Tag {
	return newInt64("latencyMs", d.Milliseconds())
}

func Value(v interface{}) Tag {
	return newObjectTag("value", v)
}

func DefaultValue(v interface{}) Tag {
	return newObjectTag("default-value", v)
}

func AnyToStr(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
