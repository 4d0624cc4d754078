// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowq_tasks_created_total",
		Help: "Total number of tasks created",
	}, []string{"task_type"})

	TasksDequeued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowq_tasks_dequeued_total",
		Help: "Total number of tasks moved to STARTED by dequeue",
	})

	TasksTerminated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowq_tasks_terminated_total",
		Help: "Total number of tasks reaching a terminal state",
	}, []string{"state"})

	TasksRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowq_tasks_retried_total",
		Help: "Total number of retry tasks spawned from failed tasks",
	})

	TasksExpiredBySweep = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowq_tasks_expired_by_sweep_total",
		Help: "Total number of tasks expired by the background sweep",
	})

	DequeueLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowq_dequeue_duration_seconds",
		Help:    "Time taken by one dequeue transaction",
		Buckets: prometheus.DefBuckets,
	})

	ScheduleTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowq_schedule_ticks_total",
		Help: "Total number of schedule fires that created a task",
	})

	AbortsRequested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowq_aborts_requested_total",
		Help: "Total number of abort fan-outs, by the terminal state that triggered them",
	}, []string{"state"})
)
