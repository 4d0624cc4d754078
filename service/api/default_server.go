// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/config"
	"github.com/flowqio/flowq/engine"
	"github.com/flowqio/flowq/events"
	"github.com/flowqio/flowq/runner"
)

const PathScheduleTask = "/api/v1/flowq/schedule"
const PathRecurringSchedule = "/api/v1/flowq/recurring"
const PathRecurringScheduleById = "/api/v1/flowq/recurring/:scheduleId"
const PathDequeueTasks = "/api/v1/flowq/dequeue"
const PathSearchTasks = "/api/v1/flowq/tasks/search"
const PathTaskById = "/api/v1/flowq/tasks/:taskId"
const PathTaskHeartbeat = "/api/v1/flowq/tasks/:taskId/heartbeat"
const PathTaskOutput = "/api/v1/flowq/tasks/:taskId/output"
const PathTaskAbort = "/api/v1/flowq/tasks/:taskId/abort"
const PathRegisterRunner = "/api/v1/flowq/runners/register"
const PathHealth = "/health"
const PathMetrics = "/metrics"

type defaultSever struct {
	rootCtx    context.Context
	cfg        config.Config
	logger     log.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

func NewDefaultAPIServerWithGin(
	rootCtx context.Context, cfg config.Config,
	scheduler engine.Scheduler, bus events.Bus,
	registry runner.Registry, aborts engine.AbortNotifier,
	logger log.Logger,
) Server {
	ginEngine := gin.Default()

	svc := NewServiceImpl(cfg, scheduler, bus, registry, aborts, logger)
	handler := newGinHandler(cfg, svc, logger)

	ginEngine.POST(PathScheduleTask, handler.CreateTask)
	ginEngine.POST(PathRecurringSchedule, handler.UpsertSchedule)
	ginEngine.GET(PathRecurringScheduleById, handler.GetSchedule)
	ginEngine.PUT(PathRecurringScheduleById, handler.UpdateScheduleState)
	ginEngine.GET(PathDequeueTasks, handler.Dequeue)
	ginEngine.POST(PathSearchTasks, handler.SearchTasks)
	ginEngine.GET(PathTaskById, handler.GetTask)
	ginEngine.PUT(PathTaskById, handler.UpdateTask)
	ginEngine.POST(PathTaskHeartbeat, handler.HeartbeatTask)
	ginEngine.GET(PathTaskOutput, handler.GetTaskOutput)
	ginEngine.POST(PathTaskAbort, handler.AbortTask)
	ginEngine.POST(PathRegisterRunner, handler.RegisterRunner)

	ginEngine.GET(PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	ginEngine.GET(PathMetrics, gin.WrapH(promhttp.Handler()))

	svrCfg := cfg.ApiService.HttpServer
	httpServer := &http.Server{
		Addr:              svrCfg.Address,
		ReadTimeout:       svrCfg.ReadTimeout,
		WriteTimeout:      svrCfg.WriteTimeout,
		ReadHeaderTimeout: svrCfg.ReadHeaderTimeout,
		IdleTimeout:       svrCfg.IdleTimeout,
		MaxHeaderBytes:    svrCfg.MaxHeaderBytes,
		TLSConfig:         svrCfg.TLSConfig,
		Handler:           ginEngine,
		BaseContext: func(listener net.Listener) context.Context {
			// for graceful shutdown
			return rootCtx
		},
	}

	return &defaultSever{
		rootCtx:    rootCtx,
		cfg:        cfg,
		logger:     logger,
		engine:     ginEngine,
		httpServer: httpServer,
	}
}

func (s defaultSever) Start() error {
	go func() {
		err := s.httpServer.ListenAndServe()
		s.logger.Info("Http Server for API service is closed", tag.Error(err))
	}()

	return nil
}

func (s defaultSever) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
