package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"rainsync/internal/models"
	"rainsync/internal/repository"
)

func seedReadings(t *testing.T, repo repository.ReadingRepository, n int) time.Time {
	t.Helper()
	base := time.Now().UTC().Add(-6 * time.Hour).Truncate(time.Hour)

	name := "Station North"
	var rows []models.RainfallReading
	for i := 0; i < n; i++ {
		v := float64(i) + 0.5
		rows = append(rows, models.RainfallReading{
			SensorCompanyID:  "sc-export",
			SensorName:       "Rainfall",
			SensorUnit:       "mm",
			DeviceName:       &name,
			Datetime:         base.Add(time.Duration(i) * time.Hour),
			ValueCalibration: &v,
			SyncedAt:         time.Now().UTC(),
			RawData:          []byte(`{}`),
		})
	}
	if _, err := repo.BulkUpsert(context.Background(), rows, 100); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return base
}

func TestExportReadings_CSV(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewReadingRepository(db)
	svc := NewExportService(repo, t.TempDir())
	seedReadings(t, repo, 3)

	path, err := svc.ExportReadings(context.Background(), "csv", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasSuffix(path, ".csv") {
		t.Errorf("path = %q, want .csv suffix", path)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d csv lines, want header + 3 rows", len(records))
	}
	if records[0][0] != "sensor_company_id" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][0] != "sc-export" || records[1][4] != "Station North" {
		t.Errorf("first row = %v", records[1])
	}
	// Rows come back newest first.
	if records[1][8] != "2.5" {
		t.Errorf("calibrated value = %q, want \"2.5\"", records[1][8])
	}
}

func TestExportReadings_JSON(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewReadingRepository(db)
	svc := NewExportService(repo, t.TempDir())
	seedReadings(t, repo, 2)

	path, err := svc.ExportReadings(context.Background(), "json", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}

	var rows []models.RainfallReading
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].SensorCompanyID != "sc-export" {
		t.Errorf("sensor id = %q", rows[0].SensorCompanyID)
	}
}

func TestExportReadings_NoData(t *testing.T) {
	db := setupTestDB(t)
	svc := NewExportService(repository.NewReadingRepository(db), t.TempDir())

	if _, err := svc.ExportReadings(context.Background(), "csv", time.Time{}, time.Time{}); err == nil {
		t.Fatal("expected error for empty range, got nil")
	}
}

func TestExportReadings_UnsupportedFormat(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewReadingRepository(db)
	svc := NewExportService(repo, t.TempDir())
	seedReadings(t, repo, 1)

	if _, err := svc.ExportReadings(context.Background(), "pdf", time.Time{}, time.Time{}); err == nil {
		t.Fatal("expected error for unsupported format, got nil")
	}
}

func TestGetReadingHistory_CapsRange(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewReadingRepository(db)
	svc := NewExportService(repo, t.TempDir())

	old := time.Now().UTC().Add(-40 * 24 * time.Hour)
	v := 1.0
	rows := []models.RainfallReading{{
		SensorCompanyID:  "sc-old",
		SensorName:       "Rainfall",
		SensorUnit:       "mm",
		Datetime:         old,
		ValueCalibration: &v,
		SyncedAt:         time.Now().UTC(),
		RawData:          []byte(`{}`),
	}}
	if _, err := repo.BulkUpsert(context.Background(), rows, 100); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := svc.GetReadingHistory(context.Background(), old.Add(-time.Hour), time.Now().UTC())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d rows outside the 30-day cap, want 0", len(got))
	}
}
