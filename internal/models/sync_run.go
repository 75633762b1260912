package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncRun is the persisted summary of a single sync cycle.
// SensorsOK + SensorsFailed always equals SensorsTotal.
type SyncRun struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	StartedAt     time.Time `gorm:"not null;index" json:"started_at"`
	FinishedAt    time.Time `gorm:"not null" json:"finished_at"`
	SensorsTotal  int       `gorm:"not null" json:"sensors_total"`
	SensorsOK     int       `gorm:"not null;column:sensors_ok" json:"sensors_ok"`
	SensorsFailed int       `gorm:"not null" json:"sensors_failed"`
	RowsUpserted  int       `gorm:"not null" json:"rows_upserted"`
	Note          string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
