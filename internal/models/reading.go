package models

import (
	"time"

	"gorm.io/datatypes"
)

// readingTable holds the physical table name. The hosted deployment keeps
// rainfall rows in a table whose name comes from the environment, so the
// model resolves it at startup instead of hardcoding it.
var readingTable = "rainfall_data"

// SetReadingTable overrides the rainfall table name. Must be called before
// any query touches the model.
func SetReadingTable(name string) {
	if name != "" {
		readingTable = name
	}
}

// ReadingTable returns the current rainfall table name.
func ReadingTable() string {
	return readingTable
}

// RainfallReading is one flattened measurement from the Mertani API.
// At most one row exists per (sensor_company_id, datetime) pair.
type RainfallReading struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	SensorCompanyID  string         `gorm:"not null;uniqueIndex:idx_readings_sensor_datetime" json:"sensor_company_id"`
	SensorName       string         `gorm:"not null" json:"sensor_name"`
	SensorUnit       string         `gorm:"not null" json:"sensor_unit"`
	DeviceID         *string        `gorm:"column:device_id" json:"device_id,omitempty"`
	DeviceName       *string        `gorm:"column:device_name" json:"device_name,omitempty"`
	GPSLocationLat   *float64       `gorm:"column:gps_location_lat" json:"gps_location_lat,omitempty"`
	GPSLocationLng   *float64       `gorm:"column:gps_location_lng" json:"gps_location_lng,omitempty"`
	Datetime         time.Time      `gorm:"not null;uniqueIndex:idx_readings_sensor_datetime" json:"datetime"`
	ValueCalibration *float64       `json:"value_calibration,omitempty"`
	ValueRaw         *float64       `json:"value_raw,omitempty"`
	SyncedAt         time.Time      `gorm:"not null" json:"synced_at"`
	RawData          datatypes.JSON `gorm:"type:jsonb;not null" json:"raw_data"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RainfallReading) TableName() string {
	return readingTable
}
