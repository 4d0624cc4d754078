// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/config"
)

type ginHandler struct {
	cfg    config.Config
	logger log.Logger
	svc    Service
}

func newGinHandler(cfg config.Config, svc Service, logger log.Logger) *ginHandler {
	return &ginHandler{
		cfg:    cfg,
		logger: logger,
		svc:    svc,
	}
}

func (h *ginHandler) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestSchema(c)
		return
	}
	h.logger.Debug("received CreateTask API request", tag.Value(h.toJson(req)))

	resp, errResp := h.svc.CreateTask(c.Request.Context(), req)
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ginHandler) UpsertSchedule(c *gin.Context) {
	var req UpsertScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestSchema(c)
		return
	}
	h.logger.Debug("received UpsertSchedule API request", tag.Value(h.toJson(req)))

	resp, errResp := h.svc.UpsertSchedule(c.Request.Context(), req)
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ginHandler) GetSchedule(c *gin.Context) {
	resp, errResp := h.svc.GetSchedule(c.Request.Context(), c.Param("scheduleId"))
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ginHandler) UpdateScheduleState(c *gin.Context) {
	var req UpdateScheduleStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestSchema(c)
		return
	}
	resp, errResp := h.svc.UpdateScheduleState(c.Request.Context(), c.Param("scheduleId"), req)
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ginHandler) Dequeue(c *gin.Context) {
	groupKey := c.Query("groupKey")
	limit, _ := strconv.Atoi(c.Query("limit"))
	wait := h.longPollWait(c.Query("longPollSecs"), time.Second)

	resp, errResp := h.svc.Dequeue(c.Request.Context(), groupKey, limit, wait)
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ginHandler) GetTask(c *gin.Context) {
	resp, errResp := h.svc.GetTask(c.Request.Context(), c.Param("taskId"))
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ginHandler) UpdateTask(c *gin.Context) {
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestSchema(c)
		return
	}
	h.logger.Debug("received UpdateTask API request", tag.Value(h.toJson(req)))

	resp, errResp := h.svc.UpdateTask(c.Request.Context(), c.Param("taskId"), req)
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ginHandler) HeartbeatTask(c *gin.Context) {
	errResp := h.svc.HeartbeatTask(c.Request.Context(), c.Param("taskId"))
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.Status(http.StatusOK)
}

func (h *ginHandler) GetTaskOutput(c *gin.Context) {
	wait := h.longPollWait(c.Query("longPollingMs"), time.Millisecond)

	resp, errResp := h.svc.GetTaskOutput(c.Request.Context(), c.Param("taskId"), wait)
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ginHandler) SearchTasks(c *gin.Context) {
	var req SearchTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestSchema(c)
		return
	}
	resp, errResp := h.svc.SearchTasks(c.Request.Context(), req)
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ginHandler) AbortTask(c *gin.Context) {
	resp, errResp := h.svc.AbortTask(c.Request.Context(), c.Param("taskId"))
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ginHandler) RegisterRunner(c *gin.Context) {
	var req RegisterRunnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestSchema(c)
		return
	}
	errResp := h.svc.RegisterRunner(c.Request.Context(), req)
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.Status(http.StatusOK)
}

// longPollWait maps an optional caller budget in the given unit to a wait
// duration, falling back to the default and capping at the server max
func (h *ginHandler) longPollWait(queryValue string, unit time.Duration) time.Duration {
	wait := h.cfg.ApiService.DefaultLongPollTimeout
	if queryValue != "" {
		parsed, err := strconv.Atoi(queryValue)
		if err == nil && parsed >= 0 {
			wait = time.Duration(parsed) * unit
		}
	}
	if wait > h.cfg.ApiService.MaxLongPollTimeout {
		wait = h.cfg.ApiService.MaxLongPollTimeout
	}
	return wait
}

func (h *ginHandler) toJson(req any) string {
	str, err := json.Marshal(req)
	if err != nil {
		h.logger.Error("error when serializing request", tag.Error(err), tag.DefaultValue(req))
		return ""
	}
	return string(str)
}

func invalidRequestSchema(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ApiErrorResponse{
		Error: ApiErrorDetail{
			Code:    ErrCodeInvalidJson,
			Message: "invalid request schema",
		},
	})
}
