package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// devicesAPILimit is the page size the /devices endpoint is queried with.
const devicesAPILimit = 50

// recordTimeLayout is the timestamp format the records endpoint expects.
const recordTimeLayout = "2006-01-02 15:04:05"

// Sensor is one sensor_company entry flattened together with the device
// that carries it.
type Sensor struct {
	SensorCompanyID string   `json:"sensor_company_id"`
	DeviceID        string   `json:"device_id,omitempty"`
	DeviceName      string   `json:"device_name,omitempty"`
	GPSLocationLat  *float64 `json:"gps_location_lat,omitempty"`
	GPSLocationLng  *float64 `json:"gps_location_lng,omitempty"`
}

// RecordGroup mirrors one element of the records payload: sensor metadata
// plus the individual measurements.
type RecordGroup struct {
	SensorMaster  map[string]interface{}   `json:"sensor_master"`
	SensorRecords []map[string]interface{} `json:"sensor_records"`
}

type MertaniClient interface {
	Login(ctx context.Context) error
	ListSensors(ctx context.Context) ([]Sensor, error)
	FetchRecords(ctx context.Context, sensorCompanyID string, start, end time.Time) ([]RecordGroup, error)
}

type mertaniClient struct {
	baseURL  string
	email    string
	password string
	client   *http.Client

	mu        sync.RWMutex
	token     string
	companyID string
}

type MertaniConfig struct {
	BaseURL  string
	Email    string
	Password string
}

func NewMertaniClient(config MertaniConfig) MertaniClient {
	return &mertaniClient{
		baseURL:  config.BaseURL,
		email:    config.Email,
		password: config.Password,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: false,
			},
		},
	}
}

// envelope is the {"status": "...", "data": ...} wrapper every endpoint uses.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (c *mertaniClient) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"strategy": "web",
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/users/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var data struct {
		AccessToken string                 `json:"accessToken"`
		User        map[string]interface{} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("decode login data: %w", err)
	}
	if data.AccessToken == "" {
		return fmt.Errorf("login succeeded but no access token returned")
	}

	c.mu.Lock()
	c.token = data.AccessToken
	c.companyID = extractString(data.User, "company_id")
	c.mu.Unlock()

	return nil
}

func (c *mertaniClient) ListSensors(ctx context.Context) ([]Sensor, error) {
	token, companyID := c.credentials()
	if token == "" {
		return nil, fmt.Errorf("not logged in")
	}

	reqURL := fmt.Sprintf("%s/devices?company_id=%s&limit=%d",
		c.baseURL, url.QueryEscape(companyID), devicesAPILimit)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Authorization", token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var data struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode devices data: %w", err)
	}

	var sensors []Sensor
	for _, device := range data.Data {
		deviceID := extractString(device, "device_id")
		deviceName := extractString(device, "device_name", "name")
		if deviceName == "" {
			deviceName = fmt.Sprintf("Device_%s", orUnknown(deviceID))
		}
		lat := extractFloat(device, "gps_location_lat", "device_latitude")
		lng := extractFloat(device, "gps_location_lng", "device_longitude")

		companies, _ := device["sensor_companies"].([]interface{})
		for _, raw := range companies {
			entry, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			id := extractString(entry, "sensor_company_id")
			if id == "" {
				continue
			}
			sensors = append(sensors, Sensor{
				SensorCompanyID: id,
				DeviceID:        deviceID,
				DeviceName:      deviceName,
				GPSLocationLat:  lat,
				GPSLocationLng:  lng,
			})
		}
	}

	return sensors, nil
}

func (c *mertaniClient) FetchRecords(ctx context.Context, sensorCompanyID string, start, end time.Time) ([]RecordGroup, error) {
	token, _ := c.credentials()
	if token == "" {
		return nil, fmt.Errorf("not logged in")
	}

	params := url.Values{}
	params.Set("sensor_company_id", sensorCompanyID)
	params.Set("start", start.Format(recordTimeLayout))
	params.Set("end", end.Format(recordTimeLayout))

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/sensors/records?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Authorization", token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, fmt.Errorf("fetch records for sensor %s: %w", sensorCompanyID, err)
	}

	var data struct {
		Data []RecordGroup `json:"data"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode records data: %w", err)
	}

	return data.Data, nil
}

func (c *mertaniClient) credentials() (token, companyID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.companyID
}

func (c *mertaniClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	// The upstream API rejects default Go user agents.
	req.Header.Set("User-Agent", "Mozilla/5.0")
}

func decodeEnvelope(resp *http.Response) (*envelope, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if env.Status != "OK" {
		return nil, fmt.Errorf("API returned status %q", env.Status)
	}
	return &env, nil
}

// extractString returns the first non-empty string value among keys,
// stringifying numbers along the way.
func extractString(data map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := data[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

// extractFloat returns the first numeric value among keys, accepting
// numbers serialized as strings.
func extractFloat(data map[string]interface{}, keys ...string) *float64 {
	for _, key := range keys {
		switch v := data[key].(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
