package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rainsync/internal/repository"
)

type ReadingHandler struct {
	readingRepo repository.ReadingRepository
	runRepo     repository.RunRepository
}

func NewReadingHandler(readingRepo repository.ReadingRepository, runRepo repository.RunRepository) *ReadingHandler {
	return &ReadingHandler{
		readingRepo: readingRepo,
		runRepo:     runRepo,
	}
}

// Latest returns the newest readings, optionally for a single sensor.
func (h *ReadingHandler) Latest(c *gin.Context) {
	ctx := c.Request.Context()
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	if sensor := c.Query("sensor"); sensor != "" {
		readings, err := h.readingRepo.GetBySensor(ctx, sensor, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get readings"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(readings), "items": readings})
		return
	}

	readings, err := h.readingRepo.GetLatest(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get readings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(readings), "items": readings})
}

// Range returns readings between from and to (YYYY-MM-DD).
func (h *ReadingHandler) Range(c *gin.Context) {
	ctx := c.Request.Context()

	from, to, err := parseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	readings, err := h.readingRepo.GetByDateRange(ctx, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get readings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(readings), "items": readings})
}

// Runs lists recent sync run summaries.
func (h *ReadingHandler) Runs(c *gin.Context) {
	ctx := c.Request.Context()
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.runRepo.GetLatest(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(runs), "items": runs})
}

func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	var err error

	if fromStr != "" {
		if from, err = time.Parse("2006-01-02", fromStr); err != nil {
			return time.Time{}, time.Time{}, errInvalidDate("from")
		}
	}
	if toStr != "" {
		if to, err = time.Parse("2006-01-02", toStr); err != nil {
			return time.Time{}, time.Time{}, errInvalidDate("to")
		}
		// Inclusive end of day.
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, nil
}

type errInvalidDate string

func (e errInvalidDate) Error() string {
	return "Invalid " + string(e) + " date format, expected YYYY-MM-DD"
}
