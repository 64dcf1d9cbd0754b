package supabase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fueltrace/tankmonitor/analytics"
	"github.com/fueltrace/tankmonitor/telemetry"
)

const (
	SUPABASE_READINGS_TABLE_NAME        = "tank_readings"
	SUPABASE_DEVICES_TABLE_NAME         = "tank_devices"
	SUPABASE_DEVICE_SNAPSHOT_TABLE_NAME = "tank_device_snapshots"
	SUPABASE_FLEET_SNAPSHOT_TABLE_NAME  = "tank_fleet_snapshots"
)

// supabaseDevice holds the json encoding schema for a registry entry in supabase.
type supabaseDevice struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	LevelPercent   *float64  `json:"latest_level_percent"`
	CapacityLitres *float64  `json:"capacity_litres"`
	LastSeen       time.Time `json:"last_seen"`
	VendorAssetID  string    `json:"vendor_asset_id"`
}

// supabaseDeviceSnapshot holds the json encoding schema for one device's computed
// analysis in supabase.
type supabaseDeviceSnapshot struct {
	ID       uuid.UUID `json:"id"`
	DeviceID uuid.UUID `json:"device_id"`
	Time     time.Time `json:"time"`

	HasSufficientData bool `json:"has_sufficient_data"`
	ReadingCount      int  `json:"reading_count"`

	CurrentLevelPercent *float64 `json:"current_level_percent"`
	ObservedMaxLitres   *float64 `json:"observed_max_litres"`

	DailyAvgLitres          float64  `json:"daily_avg_litres"`
	RollingAvgLitres        float64  `json:"rolling_avg_litres"`
	PreviousDayLitres       float64  `json:"previous_day_litres"`
	WeeklyProjectedLitres   float64  `json:"weekly_projected_litres"`
	MonthlyProjectedLitres  float64  `json:"monthly_projected_litres"`
	RollingDailyPercentRate *float64 `json:"rolling_daily_percent_rate"`

	Trend            string   `json:"trend"`
	DaysToCritical   *float64 `json:"days_to_critical"`
	ReliabilityScore float64  `json:"reliability_score"`

	RefillCount             int        `json:"refill_count"`
	AvgRefillIntervalDays   *float64   `json:"avg_refill_interval_days"`
	PredictedNextRefill     *time.Time `json:"predicted_next_refill"`
	RefillEfficiencyPercent *float64   `json:"refill_efficiency_percent"`

	AlertUnusualConsumption bool `json:"alert_unusual_consumption"`
	AlertPotentialLeak      bool `json:"alert_potential_leak"`
	AlertConnectivityIssue  bool `json:"alert_connectivity_issue"`
	AlertSensorDrift        bool `json:"alert_sensor_drift"`
}

// supabaseFleetSnapshot holds the json encoding schema for a fleet health roll-up in
// supabase.
type supabaseFleetSnapshot struct {
	ID   uuid.UUID `json:"id"`
	Time time.Time `json:"time"`

	TotalDevices       int `json:"total_devices"`
	OnlineDevices      int `json:"online_devices"`
	DevicesWithData    int `json:"devices_with_data"`
	BelowLowLevel      int `json:"below_low_level"`
	BelowCriticalLevel int `json:"below_critical_level"`

	AvgFillPercent            *float64 `json:"avg_fill_percent"`
	AvgDailyConsumptionLitres *float64 `json:"avg_daily_consumption_litres"`

	AlertsUnusualConsumption int `json:"alerts_unusual_consumption"`
	AlertsPotentialLeak      int `json:"alerts_potential_leak"`
	AlertsConnectivityIssue  int `json:"alerts_connectivity_issue"`
	AlertsSensorDrift        int `json:"alerts_sensor_drift"`
}

// convertDevicesFromSupabase maps the registry rows into the domain type.
func convertDevicesFromSupabase(rows []supabaseDevice) []telemetry.Device {
	devices := make([]telemetry.Device, 0, len(rows))
	for _, row := range rows {
		devices = append(devices, telemetry.Device{
			ID:                  row.ID,
			Name:                row.Name,
			CurrentLevelPercent: row.LevelPercent,
			CapacityHintLitres:  row.CapacityLitres,
			LastSeen:            row.LastSeen,
			VendorAssetID:       row.VendorAssetID,
		})
	}
	return devices
}

// convertSnapshotsForSupabase returns the equivilent "supbase type" for the given snapshots (which include supabase json tags) and the
// associated supabase table name.
func convertSnapshotsForSupabase(snapshots interface{}) (interface{}, string) {
	switch snapshotsTyped := snapshots.(type) {

	case []analytics.DeviceAnalytics:
		supabaseSnapshots := make([]supabaseDeviceSnapshot, 0, len(snapshotsTyped))
		for _, snapshot := range snapshotsTyped {
			supabaseSnapshots = append(supabaseSnapshots, supabaseDeviceSnapshot{
				ID:                      uuid.New(),
				DeviceID:                snapshot.DeviceID,
				Time:                    snapshot.At,
				HasSufficientData:       snapshot.HasSufficientData,
				ReadingCount:            snapshot.ReadingCount,
				CurrentLevelPercent:     snapshot.CurrentLevelPercent,
				ObservedMaxLitres:       snapshot.ObservedMaxLitres,
				DailyAvgLitres:          snapshot.DailyAvgLitres,
				RollingAvgLitres:        snapshot.RollingAvgLitres,
				PreviousDayLitres:       snapshot.PreviousDayLitres,
				WeeklyProjectedLitres:   snapshot.WeeklyProjectedLitres,
				MonthlyProjectedLitres:  snapshot.MonthlyProjectedLitres,
				RollingDailyPercentRate: snapshot.RollingDailyPercentRate,
				Trend:                   string(snapshot.Trend),
				DaysToCritical:          snapshot.DaysToCritical,
				ReliabilityScore:        snapshot.ReliabilityScore,
				RefillCount:             snapshot.RefillCount,
				AvgRefillIntervalDays:   snapshot.AvgRefillIntervalDays,
				PredictedNextRefill:     snapshot.PredictedNextRefill,
				RefillEfficiencyPercent: snapshot.RefillEfficiencyPercent,
				AlertUnusualConsumption: snapshot.Alerts.UnusualConsumption,
				AlertPotentialLeak:      snapshot.Alerts.PotentialLeak,
				AlertConnectivityIssue:  snapshot.Alerts.ConnectivityIssue,
				AlertSensorDrift:        snapshot.Alerts.SensorDrift,
			})
		}
		return supabaseSnapshots, SUPABASE_DEVICE_SNAPSHOT_TABLE_NAME

	case analytics.FleetHealth:
		supabaseSnapshots := []supabaseFleetSnapshot{
			{
				ID:                        uuid.New(),
				Time:                      snapshotsTyped.At,
				TotalDevices:              snapshotsTyped.TotalDevices,
				OnlineDevices:             snapshotsTyped.OnlineDevices,
				DevicesWithData:           snapshotsTyped.DevicesWithData,
				BelowLowLevel:             snapshotsTyped.BelowLowLevel,
				BelowCriticalLevel:        snapshotsTyped.BelowCriticalLevel,
				AvgFillPercent:            snapshotsTyped.AvgFillPercent,
				AvgDailyConsumptionLitres: snapshotsTyped.AvgDailyConsumptionLitres,
				AlertsUnusualConsumption:  snapshotsTyped.Alerts.UnusualConsumption,
				AlertsPotentialLeak:       snapshotsTyped.Alerts.PotentialLeak,
				AlertsConnectivityIssue:   snapshotsTyped.Alerts.ConnectivityIssue,
				AlertsSensorDrift:         snapshotsTyped.Alerts.SensorDrift,
			},
		}
		return supabaseSnapshots, SUPABASE_FLEET_SNAPSHOT_TABLE_NAME

	default:
		panic(fmt.Sprintf("Unknown snapshots type: '%T'", snapshots))
	}
}
