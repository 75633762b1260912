package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rainsync/internal/models"
	"rainsync/internal/repository"
)

func setupRouter(t *testing.T) (*gin.Engine, repository.ReadingRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&models.RainfallReading{}, &models.SyncRun{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	readingRepo := repository.NewReadingRepository(db)
	runRepo := repository.NewRunRepository(db)
	handler := NewReadingHandler(readingRepo, runRepo)

	router := gin.New()
	router.GET("/readings/latest", handler.Latest)
	router.GET("/readings", handler.Range)
	router.GET("/runs", handler.Runs)

	return router, readingRepo
}

func seed(t *testing.T, repo repository.ReadingRepository, sensorID string, at time.Time, value float64) {
	t.Helper()
	v := value
	rows := []models.RainfallReading{{
		SensorCompanyID:  sensorID,
		SensorName:       "Rainfall",
		SensorUnit:       "mm",
		Datetime:         at,
		ValueCalibration: &v,
		SyncedAt:         time.Now().UTC(),
		RawData:          []byte(`{}`),
	}}
	if _, err := repo.BulkUpsert(context.Background(), rows, 100); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

type listResponse struct {
	Count int                      `json:"count"`
	Items []models.RainfallReading `json:"items"`
}

func doGet(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLatest(t *testing.T) {
	router, repo := setupRouter(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seed(t, repo, "sc-1", base, 1.0)
	seed(t, repo, "sc-1", base.Add(time.Hour), 2.0)
	seed(t, repo, "sc-2", base, 3.0)

	rec := doGet(t, router, "/readings/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 3 {
		t.Errorf("count = %d, want 3", resp.Count)
	}
}

func TestLatest_FilterBySensor(t *testing.T) {
	router, repo := setupRouter(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seed(t, repo, "sc-1", base, 1.0)
	seed(t, repo, "sc-2", base, 2.0)

	rec := doGet(t, router, "/readings/latest?sensor=sc-2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Items[0].SensorCompanyID != "sc-2" {
		t.Errorf("sensor = %q, want sc-2", resp.Items[0].SensorCompanyID)
	}
}

func TestRange(t *testing.T) {
	router, repo := setupRouter(t)
	seed(t, repo, "sc-1", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), 1.0)
	seed(t, repo, "sc-1", time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC), 2.0)

	rec := doGet(t, router, "/readings?from=2025-06-01&to=2025-06-02")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1 reading inside the range", resp.Count)
	}
}

func TestRange_InvalidDate(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doGet(t, router, "/readings?from=June-1st")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRuns_Empty(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doGet(t, router, "/runs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 0 {
		t.Errorf("count = %d, want 0", resp.Count)
	}
}
