package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"prescient/internal/service"
)

type SchedulerHandler struct {
	Updater *service.PriceUpdater
	Logger  *zap.Logger
}

func (h *SchedulerHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/scheduler")
	group.POST("/trigger", h.trigger)
	group.GET("/status", h.status)
}

// @Summary Run one price reconciliation cycle now
// @Tags scheduler
// @Success 200 {object} apiResponse
// @Router /api/v1/scheduler/trigger [post]
func (h *SchedulerHandler) trigger(c *gin.Context) {
	if h.Updater == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	if err := h.Updater.TriggerNow(c.Request.Context()); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("manual price reconciliation failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, h.Updater.Status(), nil)
}

// @Summary Scheduler state
// @Tags scheduler
// @Success 200 {object} apiResponse
// @Router /api/v1/scheduler/status [get]
func (h *SchedulerHandler) status(c *gin.Context) {
	if h.Updater == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	Ok(c, h.Updater.Status(), nil)
}
