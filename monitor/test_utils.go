package monitor

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fueltrace/tankmonitor/agbot"
	"github.com/fueltrace/tankmonitor/config"
	"github.com/fueltrace/tankmonitor/telemetry"
	timeutils "github.com/fueltrace/tankmonitor/time_utils"
)

// This file contains utilities to help with testing

// mockStore serves canned registry and readings data and records every upload.
type mockStore struct {
	devices      []telemetry.Device
	rowsByDevice map[uuid.UUID][]telemetry.RawReading
	failFetchFor map[uuid.UUID]bool

	fetchCalls map[uuid.UUID]int
	uploads    []interface{}
}

func newMockStore() *mockStore {
	return &mockStore{
		rowsByDevice: map[uuid.UUID][]telemetry.RawReading{},
		failFetchFor: map[uuid.UUID]bool{},
		fetchCalls:   map[uuid.UUID]int{},
	}
}

func (s *mockStore) FetchDevices() ([]telemetry.Device, error) {
	return s.devices, nil
}

func (s *mockStore) FetchReadings(deviceID uuid.UUID, since time.Time) ([]telemetry.RawReading, error) {
	s.fetchCalls[deviceID]++
	if s.failFetchFor[deviceID] {
		return nil, errors.New("backend unavailable")
	}
	return s.rowsByDevice[deviceID], nil
}

func (s *mockStore) UploadSnapshots(snapshots interface{}) error {
	s.uploads = append(s.uploads, snapshots)
	return nil
}

// mockCache is an in-memory Cache that ignores TTLs and records invalidations.
type mockCache struct {
	entries     map[string][]byte
	invalidated []string
	purgedCount int
}

func newMockCache() *mockCache {
	return &mockCache{entries: map[string][]byte{}}
}

func (c *mockCache) Get(key string) ([]byte, bool, error) {
	value, ok := c.entries[key]
	return value, ok, nil
}

func (c *mockCache) Set(key string, value []byte, ttl time.Duration) error {
	c.entries[key] = value
	return nil
}

func (c *mockCache) InvalidatePrefix(prefix string) error {
	c.invalidated = append(c.invalidated, prefix)
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *mockCache) PurgeExpired() error {
	c.purgedCount++
	return nil
}

// mockVendor serves canned vendor statuses and records calibration reports.
type mockVendor struct {
	statuses     map[string]agbot.DeviceStatus
	calibrations map[string]float64
}

func newMockVendor() *mockVendor {
	return &mockVendor{
		statuses:     map[string]agbot.DeviceStatus{},
		calibrations: map[string]float64{},
	}
}

func (v *mockVendor) LatestStatus(assetID string) (agbot.DeviceStatus, bool) {
	status, ok := v.statuses[assetID]
	return status, ok
}

func (v *mockVendor) ReportCalibration(assetID string, capacityLitres float64) error {
	v.calibrations[assetID] = capacityLitres
	return nil
}

// baseTestConfig returns a configuration with the documented default thresholds, used
// as the starting point for most tests.
func baseTestConfig() config.Config {
	return config.Config{
		Location: config.Location{Loc: time.UTC},
		Analysis: config.AnalysisConfig{
			LookbackDays:         30,
			MinReadings:          5,
			TrendChangePercent:   10,
			LowLevelPercent:      35,
			CriticalLevelPercent: 20,
		},
		Refill: config.RefillConfig{
			AbsoluteLitres:    100,
			RelativePercent:   20,
			RelativeMinLitres: 50,
			PercentRise:       20,
		},
		Consumption: config.ConsumptionConfig{
			MaxDailyLitres:    15000,
			MaxDailyPercent:   100,
			RollingWindowDays: 7,
		},
		Anomaly: config.AnomalyConfig{
			StdDevMultiplier: 2,
			MinSamples:       5,
			NightWindow: timeutils.ClockTimePeriod{
				Start: timeutils.ClockTime{Hour: 0, Minute: 0, Location: time.UTC},
				End:   timeutils.ClockTime{Hour: 5, Minute: 0, Location: time.UTC},
			},
			NightFloorLitres: 40,
			MinNights:        2,
			StalenessHours:   25,
			FaultCount:       3,
		},
		Cache: config.CacheConfig{
			ReadingsTTLSecs:  600,
			AnalyticsTTLSecs: 600,
		},
		Monitor: config.MonitorConfig{
			ScanIntervalSecs: 300,
		},
	}
}

// mustParseTime returns the time.Time associated with the given string or panics.
func mustParseTime(str string) time.Time {
	time, err := time.Parse(time.RFC3339, str)
	if err != nil {
		panic(err)
	}
	return time
}

// rawRow builds one wire-shaped reading row with both level channels set.
func rawRow(deviceID uuid.UUID, timeStr string, litres, percent float64) telemetry.RawReading {
	return telemetry.RawReading{
		ID:           uuid.New().String(),
		DeviceID:     deviceID.String(),
		Time:         timeStr,
		LevelPercent: percent,
		LevelLitres:  litres,
		Online:       true,
	}
}
