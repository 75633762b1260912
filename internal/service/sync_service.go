package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"rainsync/internal/clients"
	"rainsync/internal/models"
	"rainsync/internal/repository"
)

const (
	// catalogCacheTTL bounds how long a discovered sensor catalog is reused.
	catalogCacheTTL = 5 * time.Minute
	// duplicateSkipTTL guards against re-fetching the same sensor/window
	// in quick succession (overlapping runs, manual refresh after a run).
	duplicateSkipTTL = 60 * time.Second

	catalogCacheKey = "mertani:sensors"
	lastRunCacheKey = "sync:last_run"
)

type SyncService interface {
	// SyncAll runs the whole pipeline: login, resolve sensors, fetch,
	// transform, upsert, and record a run summary. Per-sensor failures
	// are logged and counted, never fatal.
	SyncAll(ctx context.Context) (*models.SyncRun, error)
	// SyncSensor refreshes a single sensor and returns the rows written.
	SyncSensor(ctx context.Context, sensorCompanyID string) (int, error)
	ResolveSensors(ctx context.Context) ([]clients.Sensor, error)
}

type SyncConfig struct {
	SensorIDs []string
	Window    time.Duration
	Workers   int
	BatchSize int
}

type syncService struct {
	readingRepo repository.ReadingRepository
	runRepo     repository.RunRepository
	cacheRepo   repository.CacheRepository
	client      clients.MertaniClient
	config      SyncConfig
}

func NewSyncService(
	readingRepo repository.ReadingRepository,
	runRepo repository.RunRepository,
	cacheRepo repository.CacheRepository,
	client clients.MertaniClient,
	config SyncConfig,
) SyncService {
	if config.Window <= 0 {
		config.Window = 24 * time.Hour
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.BatchSize < 1 {
		config.BatchSize = 1000
	}
	return &syncService{
		readingRepo: readingRepo,
		runRepo:     runRepo,
		cacheRepo:   cacheRepo,
		client:      client,
		config:      config,
	}
}

// sensorResult carries one sensor's outcome out of the fetch pool.
type sensorResult struct {
	sensor   clients.Sensor
	readings []models.RainfallReading
	err      error
	skipped  bool
}

func (s *syncService) SyncAll(ctx context.Context) (*models.SyncRun, error) {
	startedAt := time.Now().UTC()

	if err := s.client.Login(ctx); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	sensors, err := s.ResolveSensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve sensors: %w", err)
	}
	if len(sensors) == 0 {
		return nil, fmt.Errorf("no sensors available")
	}

	end := time.Now().UTC()
	start := end.Add(-s.config.Window)
	log.Printf("Sync started: %d sensors, window %s - %s",
		len(sensors), start.Format(time.RFC3339), end.Format(time.RFC3339))

	results := s.fetchAll(ctx, sensors, start, end)

	var rows []models.RainfallReading
	okCount, failedCount := 0, 0
	for _, res := range results {
		if res.err != nil {
			failedCount++
			log.Printf("Sensor %s failed: %v", shortID(res.sensor.SensorCompanyID), res.err)
			continue
		}
		okCount++
		rows = append(rows, res.readings...)
	}

	written := 0
	if len(rows) > 0 {
		written, err = s.readingRepo.BulkUpsert(ctx, rows, s.config.BatchSize)
		if err != nil {
			log.Printf("Upsert finished with errors after %d rows: %v", written, err)
		}
	}

	run := &models.SyncRun{
		StartedAt:     startedAt,
		FinishedAt:    time.Now().UTC(),
		SensorsTotal:  len(sensors),
		SensorsOK:     okCount,
		SensorsFailed: failedCount,
		RowsUpserted:  written,
	}
	if err != nil {
		run.Note = err.Error()
	}

	if err := s.runRepo.Create(ctx, run); err != nil {
		log.Printf("Failed to persist run summary: %v", err)
	}
	if err := s.cacheRepo.SetJSON(ctx, lastRunCacheKey, run, 24*time.Hour); err != nil {
		log.Printf("Failed to cache run summary: %v", err)
	}

	log.Printf("Sync finished: %d/%d sensors ok, %d failed, %d rows upserted in %s",
		run.SensorsOK, run.SensorsTotal, run.SensorsFailed, run.RowsUpserted,
		run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))

	return run, nil
}

func (s *syncService) SyncSensor(ctx context.Context, sensorCompanyID string) (int, error) {
	if sensorCompanyID == "" {
		return 0, fmt.Errorf("sensor id is required")
	}

	if err := s.client.Login(ctx); err != nil {
		return 0, fmt.Errorf("login failed: %w", err)
	}

	sensor := clients.Sensor{SensorCompanyID: sensorCompanyID}
	if known, err := s.ResolveSensors(ctx); err == nil {
		for _, sn := range known {
			if sn.SensorCompanyID == sensorCompanyID {
				sensor = sn
				break
			}
		}
	}

	end := time.Now().UTC()
	groups, err := s.client.FetchRecords(ctx, sensorCompanyID, end.Add(-s.config.Window), end)
	if err != nil {
		return 0, err
	}

	rows := transformGroups(sensor, groups, time.Now().UTC())
	if len(rows) == 0 {
		return 0, nil
	}
	return s.readingRepo.BulkUpsert(ctx, rows, s.config.BatchSize)
}

// ResolveSensors returns the configured sensor list, or falls back to
// device discovery with a short-lived Redis-cached catalog.
func (s *syncService) ResolveSensors(ctx context.Context) ([]clients.Sensor, error) {
	if len(s.config.SensorIDs) > 0 {
		sensors := make([]clients.Sensor, 0, len(s.config.SensorIDs))
		for _, id := range s.config.SensorIDs {
			sensors = append(sensors, clients.Sensor{SensorCompanyID: id})
		}
		return sensors, nil
	}

	var cached []clients.Sensor
	if err := s.cacheRepo.GetJSON(ctx, catalogCacheKey, &cached); err == nil && len(cached) > 0 {
		return cached, nil
	}

	sensors, err := s.client.ListSensors(ctx)
	if err != nil {
		return nil, err
	}
	if len(sensors) == 0 {
		log.Println("Device listing returned no sensors")
		return nil, nil
	}

	if err := s.cacheRepo.SetJSON(ctx, catalogCacheKey, sensors, catalogCacheTTL); err != nil {
		log.Printf("Failed to cache sensor catalog: %v", err)
	}
	return sensors, nil
}

// fetchAll pulls every sensor's window with a bounded worker pool.
// Failures stay attached to their sensor; nothing here cancels siblings.
func (s *syncService) fetchAll(ctx context.Context, sensors []clients.Sensor, start, end time.Time) []sensorResult {
	syncedAt := time.Now().UTC()
	results := make([]sensorResult, len(sensors))

	sem := make(chan struct{}, s.config.Workers)
	var wg sync.WaitGroup

	for i, sensor := range sensors {
		wg.Add(1)
		go func(idx int, sn clients.Sensor) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = s.fetchOne(ctx, sn, start, end, syncedAt)
		}(i, sensor)
	}
	wg.Wait()

	return results
}

func (s *syncService) fetchOne(ctx context.Context, sensor clients.Sensor, start, end, syncedAt time.Time) sensorResult {
	res := sensorResult{sensor: sensor}

	skipKey := fmt.Sprintf("sync:seen:%s:%d:%d", sensor.SensorCompanyID, start.Unix(), end.Unix())
	if seen, err := s.cacheRepo.Exists(ctx, skipKey); err == nil && seen {
		log.Printf("Sensor %s: window already fetched recently, skipping", shortID(sensor.SensorCompanyID))
		res.skipped = true
		return res
	}

	groups, err := s.client.FetchRecords(ctx, sensor.SensorCompanyID, start, end)
	if err != nil {
		res.err = err
		return res
	}

	if err := s.cacheRepo.Set(ctx, skipKey, "1", duplicateSkipTTL); err != nil {
		log.Printf("Failed to set duplicate-skip key: %v", err)
	}

	res.readings = transformGroups(sensor, groups, syncedAt)
	return res
}

// transformGroups flattens the records payload into table rows. Records
// without a parseable timestamp are dropped with a log line.
func transformGroups(sensor clients.Sensor, groups []clients.RecordGroup, syncedAt time.Time) []models.RainfallReading {
	var rows []models.RainfallReading

	for _, group := range groups {
		sensorName := extractString(group.SensorMaster, "sensor_name")
		if sensorName == "" {
			sensorName = "Unknown"
		}
		sensorUnit := extractString(group.SensorMaster, "sensor_unit")
		if sensorUnit == "" {
			sensorUnit = "mm"
		}

		for _, record := range group.SensorRecords {
			measuredAt, err := parseRecordTime(extractString(record, "datetime"))
			if err != nil {
				log.Printf("Sensor %s: dropping record with bad datetime: %v",
					shortID(sensor.SensorCompanyID), err)
				continue
			}

			raw, err := json.Marshal(record)
			if err != nil {
				// Keep the row; note the serialization failure in place
				// of the payload.
				raw, _ = json.Marshal(map[string]string{
					"error": "JSON serialization failed",
					"data":  fmt.Sprint(record),
				})
			}

			row := models.RainfallReading{
				SensorCompanyID:  sensor.SensorCompanyID,
				SensorName:       sensorName,
				SensorUnit:       sensorUnit,
				Datetime:         measuredAt,
				ValueCalibration: safeFloat(record["value_calibration"]),
				ValueRaw:         safeFloat(record["value_raw"]),
				SyncedAt:         syncedAt,
				RawData:          raw,
			}
			if sensor.DeviceID != "" {
				id := sensor.DeviceID
				row.DeviceID = &id
			}
			if sensor.DeviceName != "" {
				name := sensor.DeviceName
				row.DeviceName = &name
			}
			row.GPSLocationLat = sensor.GPSLocationLat
			row.GPSLocationLng = sensor.GPSLocationLng

			rows = append(rows, row)
		}
	}

	return rows
}

var recordTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseRecordTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	for _, layout := range recordTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", value)
}

// safeFloat coerces API values into a nullable float.
func safeFloat(value interface{}) *float64 {
	switch v := value.(type) {
	case float64:
		f := v
		return &f
	case float32:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}

func extractString(data map[string]interface{}, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// shortID trims sensor uuids down for log lines.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
