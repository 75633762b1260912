package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rainsync/internal/repository"
	redispkg "rainsync/pkg/redis"

	goredis "github.com/go-redis/redis/v8"
)

type SystemHandler struct {
	readingRepo repository.ReadingRepository
	runRepo     repository.RunRepository
	redisClient *goredis.Client
	sensorCount int
}

func NewSystemHandler(
	readingRepo repository.ReadingRepository,
	runRepo repository.RunRepository,
	redisClient *goredis.Client,
	sensorCount int,
) *SystemHandler {
	return &SystemHandler{
		readingRepo: readingRepo,
		runRepo:     runRepo,
		redisClient: redisClient,
		sensorCount: sensorCount,
	}
}

func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *SystemHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	readingCount, _ := h.readingRepo.Count(ctx)
	runCount, _ := h.runRepo.Count(ctx)

	stats := gin.H{
		"database": gin.H{
			"readings":  readingCount,
			"sync_runs": runCount,
		},
		"sensors_configured": h.sensorCount,
	}

	if h.redisClient != nil {
		if redisStats, err := redispkg.GetStats(h.redisClient); err == nil {
			stats["redis"] = redisStats
		}
	}

	c.JSON(http.StatusOK, stats)
}
