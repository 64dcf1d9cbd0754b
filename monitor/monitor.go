package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fueltrace/tankmonitor/agbot"
	"github.com/fueltrace/tankmonitor/analytics"
	"github.com/fueltrace/tankmonitor/config"
	"github.com/fueltrace/tankmonitor/telemetry"
)

// Store is the backend the monitor reads telemetry from and writes computed snapshots
// back to.
type Store interface {
	FetchDevices() ([]telemetry.Device, error)
	FetchReadings(deviceID uuid.UUID, since time.Time) ([]telemetry.RawReading, error)
	UploadSnapshots(snapshots interface{}) error
}

// Cache is the TTL'd key/value store that spares the backend a full readings fetch on
// every scan.
type Cache interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte, ttl time.Duration) error
	InvalidatePrefix(prefix string) error
	PurgeExpired() error
}

// VendorStatuses provides the vendor cloud's independent view of the fleet.
type VendorStatuses interface {
	LatestStatus(assetID string) (agbot.DeviceStatus, bool)
	ReportCalibration(assetID string, capacityLitres float64) error
}

// Monitor periodically scans the whole tank fleet: it pulls each device's telemetry
// (from cache where fresh enough), runs the analysis, uploads the computed snapshots
// and publishes a fleet health roll-up.
//
// Consume fleet health updates from the `Health` channel; a scan never blocks on it.
type Monitor struct {
	Health chan analytics.FleetHealth

	store  Store
	cache  Cache
	vendor VendorStatuses // nil when no vendor account is configured
	config config.Config

	logger *slog.Logger
}

func New(store Store, cache Cache, vendor VendorStatuses, config config.Config) *Monitor {
	return &Monitor{
		Health: make(chan analytics.FleetHealth, 1), // a little slack so a slow consumer doesn't immediately drop updates
		store:  store,
		cache:  cache,
		vendor: vendor,
		config: config,
		logger: slog.Default(),
	}
}

// Run loops forever, scanning the fleet once immediately and then on every tick of the
// configured scan interval. Exits when the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	scanTicker := time.NewTicker(time.Duration(m.config.Monitor.ScanIntervalSecs) * time.Second)

	m.runScan(time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-scanTicker.C:
			m.runScan(t)
		}
	}
}

// runScan analyzes every device in the registry as of time `t` and publishes the
// results. A failure on one device is logged and skipped, it never aborts the scan.
func (m *Monitor) runScan(t time.Time) {

	devices, err := m.store.FetchDevices()
	if err != nil {
		m.logger.Error("Failed to fetch device registry", "error", err)
		return
	}

	since := t.AddDate(0, 0, -m.config.Analysis.LookbackDays)

	allAnalytics := make([]analytics.DeviceAnalytics, 0, len(devices))
	for _, device := range devices {
		deviceAnalytics, err := m.analyzeDevice(t, device, since)
		if err != nil {
			m.logger.Error("Failed to analyze device", "device_id", device.ID, "error", err)
			continue
		}
		allAnalytics = append(allAnalytics, deviceAnalytics)
	}

	fleetHealth := analytics.AggregateFleet(t, allAnalytics, m.config.Analysis)
	m.cacheValue(fleetHealthCacheKey, fleetHealth, m.analyticsTTL())

	select {
	case m.Health <- fleetHealth:
	default:
		m.logger.Warn("Dropped fleet health update, consumer is lagging")
	}

	m.uploadSnapshots(allAnalytics, fleetHealth)

	err = m.cache.PurgeExpired()
	if err != nil {
		m.logger.Warn("Failed to purge expired cache entries", "error", err)
	}

	m.logger.Info(
		"Completed fleet scan",
		"devices", len(devices),
		"analyzed", len(allAnalytics),
		"online", fleetHealth.OnlineDevices,
		"below_low", fleetHealth.BelowLowLevel,
		"below_critical", fleetHealth.BelowCriticalLevel,
	)
}

// analyzeDevice runs the full pipeline for one device: fetch, normalize, analyze,
// snapshot.
func (m *Monitor) analyzeDevice(t time.Time, device telemetry.Device, since time.Time) (analytics.DeviceAnalytics, error) {

	rows, err := m.fetchReadings(device.ID, since)
	if err != nil {
		return analytics.DeviceAnalytics{}, fmt.Errorf("fetch readings: %w", err)
	}

	readings, report := telemetry.Normalize(device.ID, rows, m.config.Location.Loc)
	deviceAnalytics := analytics.AnalyzeDevice(t, device, readings, report, m.config)

	m.cacheValue(analyticsCacheKey(device.ID), deviceAnalytics, m.analyticsTTL())
	m.checkVendor(device, deviceAnalytics)

	return deviceAnalytics, nil
}

// fetchReadings returns the device's raw telemetry window, served from the cache when
// a fresh enough copy exists, and cached after a backend fetch otherwise.
func (m *Monitor) fetchReadings(deviceID uuid.UUID, since time.Time) ([]telemetry.RawReading, error) {
	key := readingsCacheKey(deviceID)

	cached, ok, err := m.cache.Get(key)
	if err != nil {
		m.logger.Warn("Failed to read cached readings", "device_id", deviceID, "error", err)
	} else if ok {
		var rows []telemetry.RawReading
		err = json.Unmarshal(cached, &rows)
		if err == nil {
			return rows, nil
		}
		m.logger.Warn("Discarding undecodable cached readings", "device_id", deviceID, "error", err)
	}

	rows, err := m.store.FetchReadings(deviceID, since)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(rows)
	if err == nil {
		err = m.cache.Set(key, encoded, time.Duration(m.config.Cache.ReadingsTTLSecs)*time.Second)
	}
	if err != nil {
		m.logger.Warn("Failed to cache readings", "device_id", deviceID, "error", err)
	}

	return rows, nil
}

// checkVendor cross-references our view of the device against the vendor cloud's, and
// pushes capacity calibration hints upstream.
func (m *Monitor) checkVendor(device telemetry.Device, deviceAnalytics analytics.DeviceAnalytics) {
	if m.vendor == nil || device.VendorAssetID == "" {
		return
	}

	status, ok := m.vendor.LatestStatus(device.VendorAssetID)
	if !ok {
		return
	}

	if deviceAnalytics.Alerts.ConnectivityIssue {
		staleness := time.Duration(m.config.Anomaly.StalenessHours * float64(time.Hour))
		if deviceAnalytics.At.Sub(status.LastReported) <= staleness {
			// The sensor is alive at the vendor but its rows aren't reaching our backend.
			// Drop the cached window so the next scan re-fetches instead of serving the
			// stale copy for the rest of its TTL.
			m.logger.Warn(
				"Device is stale in the backend but fresh at the vendor",
				"device_id", device.ID,
				"asset_id", device.VendorAssetID,
				"vendor_last_reported", status.LastReported,
			)
			err := m.cache.InvalidatePrefix(readingsCacheKey(device.ID))
			if err != nil {
				m.logger.Warn("Failed to invalidate cached readings", "device_id", device.ID, "error", err)
			}
		}
	}

	if device.CapacityHintLitres == nil && deviceAnalytics.ObservedMaxLitres != nil {
		err := m.vendor.ReportCalibration(device.VendorAssetID, *deviceAnalytics.ObservedMaxLitres)
		if err != nil {
			m.logger.Warn("Failed to report capacity calibration", "device_id", device.ID, "error", err)
		}
	}
}

// uploadSnapshots pushes the computed analysis to the backend. Failures are logged and
// tolerated - the next scan uploads fresh snapshots anyway.
func (m *Monitor) uploadSnapshots(allAnalytics []analytics.DeviceAnalytics, fleetHealth analytics.FleetHealth) {
	if len(allAnalytics) > 0 {
		err := m.store.UploadSnapshots(allAnalytics)
		if err != nil {
			m.logger.Error("Failed to upload device snapshots", "error", err)
		}
	}

	err := m.store.UploadSnapshots(fleetHealth)
	if err != nil {
		m.logger.Error("Failed to upload fleet snapshot", "error", err)
	}
}

// cacheValue stores the JSON encoding of the given value, best-effort.
func (m *Monitor) cacheValue(key string, value interface{}, ttl time.Duration) {
	encoded, err := json.Marshal(value)
	if err == nil {
		err = m.cache.Set(key, encoded, ttl)
	}
	if err != nil {
		m.logger.Warn("Failed to cache value", "key", key, "error", err)
	}
}

func (m *Monitor) analyticsTTL() time.Duration {
	return time.Duration(m.config.Cache.AnalyticsTTLSecs) * time.Second
}

const fleetHealthCacheKey = "fleet/health"

func readingsCacheKey(deviceID uuid.UUID) string {
	return "readings/" + deviceID.String()
}

func analyticsCacheKey(deviceID uuid.UUID) string {
	return "analytics/" + deviceID.String()
}
