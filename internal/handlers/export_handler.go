package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rainsync/internal/service"
)

type ExportHandler struct {
	service service.ExportService
}

func NewExportHandler(service service.ExportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Export writes stored readings to a file (csv, xlsx or json) and serves it.
func (h *ExportHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()

	format := c.DefaultQuery("format", "csv")
	from, to, err := parseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	path, err := h.service.ExportReadings(ctx, format, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export readings"})
		return
	}

	c.File(path)
}
