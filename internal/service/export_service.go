package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"rainsync/internal/models"
	"rainsync/internal/repository"
	"rainsync/internal/utils"
)

type ExportService interface {
	GetReadingHistory(ctx context.Context, from, to time.Time) ([]models.RainfallReading, error)
	ExportReadings(ctx context.Context, format string, from, to time.Time) (string, error)
}

type exportService struct {
	repo      repository.ReadingRepository
	outputDir string
}

func NewExportService(repo repository.ReadingRepository, outputDir string) ExportService {
	if outputDir == "" {
		outputDir = "./data/exports"
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Printf("Failed to create export directory: %v", err)
	}

	return &exportService{
		repo:      repo,
		outputDir: outputDir,
	}
}

func (s *exportService) GetReadingHistory(ctx context.Context, from, to time.Time) ([]models.RainfallReading, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}

	// Exports are capped at a month of data.
	maxRange := 30 * 24 * time.Hour
	if to.Sub(from) > maxRange {
		from = to.Add(-maxRange)
	}

	return s.repo.GetByDateRange(ctx, from, to)
}

func (s *exportService) ExportReadings(ctx context.Context, format string, from, to time.Time) (string, error) {
	readings, err := s.GetReadingHistory(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("failed to get readings: %w", err)
	}
	if len(readings) == 0 {
		return "", fmt.Errorf("no data found for the specified range")
	}

	timestamp := time.Now().UTC().Format("20060102_150405")

	switch format {
	case "csv":
		path := filepath.Join(s.outputDir, fmt.Sprintf("rainfall_export_%s.csv", timestamp))
		if err := s.saveToCSV(path, readings); err != nil {
			return "", err
		}
		return path, nil

	case "excel", "xlsx":
		path := filepath.Join(s.outputDir, fmt.Sprintf("rainfall_export_%s.xlsx", timestamp))
		if err := utils.CreateExcelFile(path, readings); err != nil {
			return "", err
		}
		return path, nil

	case "json":
		path := filepath.Join(s.outputDir, fmt.Sprintf("rainfall_export_%s.json", timestamp))
		if err := utils.SaveAsJSON(path, readings); err != nil {
			return "", err
		}
		return path, nil

	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func (s *exportService) saveToCSV(path string, readings []models.RainfallReading) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"sensor_company_id", "sensor_name", "sensor_unit",
		"device_id", "device_name", "gps_location_lat", "gps_location_lng",
		"datetime", "value_calibration", "value_raw", "synced_at",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range readings {
		row := []string{
			r.SensorCompanyID,
			r.SensorName,
			r.SensorUnit,
			strValue(r.DeviceID),
			strValue(r.DeviceName),
			floatValue(r.GPSLocationLat),
			floatValue(r.GPSLocationLng),
			r.Datetime.Format("2006-01-02 15:04:05"),
			floatValue(r.ValueCalibration),
			floatValue(r.ValueRaw),
			r.SyncedAt.Format("2006-01-02 15:04:05"),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatValue(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
