package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rainsync/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReadingRepository interface {
	// BulkUpsert writes readings in batches, keyed on
	// (sensor_company_id, datetime). Existing rows take the new values;
	// device name/id and GPS fall back to the stored ones when the new
	// row omits them. Returns the number of rows that were written,
	// together with the joined errors of any rows that were not.
	BulkUpsert(ctx context.Context, readings []models.RainfallReading, batchSize int) (int, error)
	GetLatest(ctx context.Context, limit int) ([]models.RainfallReading, error)
	GetBySensor(ctx context.Context, sensorCompanyID string, limit int) ([]models.RainfallReading, error)
	GetByDateRange(ctx context.Context, from, to time.Time) ([]models.RainfallReading, error)
	Count(ctx context.Context) (int64, error)
}

type readingRepository struct {
	db *gorm.DB
}

func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepository{db: db}
}

// upsertClause maps the conflict on the sensor/time pair to an update.
// COALESCE against the excluded row keeps previously stored device
// metadata when a later payload arrives without it.
func upsertClause() clause.OnConflict {
	table := models.ReadingTable()
	coalesce := func(col string) clause.Expr {
		return gorm.Expr(fmt.Sprintf("COALESCE(excluded.%s, %s.%s)", col, table, col))
	}

	return clause.OnConflict{
		Columns: []clause.Column{{Name: "sensor_company_id"}, {Name: "datetime"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"sensor_name":       gorm.Expr("excluded.sensor_name"),
			"sensor_unit":       gorm.Expr("excluded.sensor_unit"),
			"device_id":         coalesce("device_id"),
			"device_name":       coalesce("device_name"),
			"gps_location_lat":  coalesce("gps_location_lat"),
			"gps_location_lng":  coalesce("gps_location_lng"),
			"value_calibration": gorm.Expr("excluded.value_calibration"),
			"value_raw":         gorm.Expr("excluded.value_raw"),
			"synced_at":         gorm.Expr("excluded.synced_at"),
			"raw_data":          gorm.Expr("excluded.raw_data"),
			"updated_at":        gorm.Expr("excluded.updated_at"),
		}),
	}
}

func (r *readingRepository) BulkUpsert(ctx context.Context, readings []models.RainfallReading, batchSize int) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}
	if batchSize < 1 {
		batchSize = 1000
	}

	written := 0
	var failed []error
	for start := 0; start < len(readings); start += batchSize {
		end := start + batchSize
		if end > len(readings) {
			end = len(readings)
		}
		batch := readings[start:end]

		err := r.db.WithContext(ctx).Clauses(upsertClause()).Create(&batch).Error
		if err == nil {
			written += len(batch)
			continue
		}

		// One bad row should not sink the batch: retry individually,
		// logging and collecting every row that still fails.
		for i := range batch {
			row := batch[i]
			if rowErr := r.db.WithContext(ctx).Clauses(upsertClause()).Create(&row).Error; rowErr != nil {
				log.Printf("Upsert failed for sensor=%s datetime=%s: %v",
					row.SensorCompanyID, row.Datetime.Format(time.RFC3339), rowErr)
				failed = append(failed, fmt.Errorf("upsert reading sensor=%s datetime=%s: %w",
					row.SensorCompanyID, row.Datetime.Format(time.RFC3339), rowErr))
				continue
			}
			written++
		}
	}

	return written, errors.Join(failed...)
}

func (r *readingRepository) GetLatest(ctx context.Context, limit int) ([]models.RainfallReading, error) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	var readings []models.RainfallReading
	err := r.db.WithContext(ctx).
		Order("datetime DESC").
		Limit(limit).
		Find(&readings).
		Error
	return readings, err
}

func (r *readingRepository) GetBySensor(ctx context.Context, sensorCompanyID string, limit int) ([]models.RainfallReading, error) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	var readings []models.RainfallReading
	err := r.db.WithContext(ctx).
		Where("sensor_company_id = ?", sensorCompanyID).
		Order("datetime DESC").
		Limit(limit).
		Find(&readings).
		Error
	return readings, err
}

func (r *readingRepository) GetByDateRange(ctx context.Context, from, to time.Time) ([]models.RainfallReading, error) {
	var readings []models.RainfallReading
	err := r.db.WithContext(ctx).
		Where("datetime BETWEEN ? AND ?", from, to).
		Order("datetime DESC").
		Find(&readings).
		Error
	return readings, err
}

func (r *readingRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RainfallReading{}).
		Count(&count).
		Error
	return count, err
}
