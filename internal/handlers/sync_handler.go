package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rainsync/internal/service"
)

type SyncHandler struct {
	service service.SyncService
}

func NewSyncHandler(service service.SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// Refresh triggers a full sync cycle immediately.
func (h *SyncHandler) Refresh(c *gin.Context) {
	ctx := c.Request.Context()

	run, err := h.service.SyncAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "sync complete", "run": run})
}

// RefreshSensor re-syncs a single sensor by id.
func (h *SyncHandler) RefreshSensor(c *gin.Context) {
	ctx := c.Request.Context()

	written, err := h.service.SyncSensor(ctx, c.Param("sensor"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "sensor synced", "rows_upserted": written})
}
