// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package async

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/engine"
	"github.com/xcherryio/taskexpiry/persistence"
)

type ginHandler struct {
	logger log.Logger
	svc    Service
}

type ApiErrorResponse struct {
	Details string `json:"details"`
}

type FireResponse struct {
	Outcome string `json:"outcome"`
}

func newGinHandler(svc Service, logger log.Logger) *ginHandler {
	return &ginHandler{
		logger: logger,
		svc:    svc,
	}
}

func (h *ginHandler) Fire(c *gin.Context) {
	var req persistence.TriggerPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestSchema(c)
		return
	}

	outcome, err := h.svc.Fire(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, persistence.ErrMalformedPayload) {
			h.logger.Error("dropping malformed trigger payload", tag.Error(err), tag.TaskId(req.TaskId))
			invalidRequestForError(c, err)
			return
		}
		h.logger.Warn("failed to fire trigger", tag.Error(err), tag.TaskId(req.TaskId))
		c.JSON(http.StatusServiceUnavailable, ApiErrorResponse{
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, FireResponse{Outcome: string(outcome)})
}

func (h *ginHandler) NotifyTriggers(c *gin.Context) {
	var req engine.NotifyTriggersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestSchema(c)
		return
	}

	h.svc.NotifyPollingTriggers(req)
	successRespond(c)
}

func (h *ginHandler) Health(c *gin.Context) {
	successRespond(c)
}

func successRespond(c *gin.Context) {
	c.JSON(http.StatusOK, map[string]string{
		"message": "success",
	})
}

func invalidRequestSchema(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ApiErrorResponse{
		Details: "invalid request schema",
	})
}

func invalidRequestForError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ApiErrorResponse{
		Details: err.Error(),
	})
}
