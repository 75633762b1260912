package repository

import (
	"context"
	"time"

	"rainsync/internal/models"

	"gorm.io/gorm"
)

type RunRepository interface {
	Create(ctx context.Context, run *models.SyncRun) error
	GetLatest(ctx context.Context, limit int) ([]models.SyncRun, error)
	Count(ctx context.Context) (int64, error)
	DeleteOld(ctx context.Context, olderThan time.Time) error
}

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) Create(ctx context.Context, run *models.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *runRepository) GetLatest(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit < 1 || limit > 500 {
		limit = 20
	}

	var runs []models.SyncRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).
		Error
	return runs, err
}

func (r *runRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SyncRun{}).
		Count(&count).
		Error
	return count, err
}

func (r *runRepository) DeleteOld(ctx context.Context, olderThan time.Time) error {
	return r.db.WithContext(ctx).
		Where("started_at < ?", olderThan).
		Delete(&models.SyncRun{}).
		Error
}
