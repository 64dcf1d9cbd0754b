package analytics

import (
	"testing"

	"github.com/google/uuid"
)

func TestAggregateFleetMixedDevices(t *testing.T) {
	cfg := baseTestConfig().Analysis
	at := mustParseTime("2024-03-20T12:00:00Z")

	healthyLevel := 60.0
	sparseLevel := 80.0
	all := []DeviceAnalytics{
		{
			DeviceID:            uuid.New(),
			HasSufficientData:   true,
			CurrentLevelPercent: &healthyLevel,
			RollingAvgLitres:    120,
		},
		{
			DeviceID:            uuid.New(),
			HasSufficientData:   false,
			CurrentLevelPercent: &sparseLevel,
			Alerts:              AlertFlags{ConnectivityIssue: true},
		},
	}

	health := AggregateFleet(at, all, cfg)

	if !health.At.Equal(at) {
		t.Errorf("Got timestamp %v, expected %v", health.At, at)
	}
	if health.TotalDevices != 2 {
		t.Errorf("Got %d total devices, expected 2", health.TotalDevices)
	}
	if health.OnlineDevices != 1 {
		t.Errorf("Got %d online devices, expected 1", health.OnlineDevices)
	}
	if health.DevicesWithData != 1 {
		t.Errorf("Got %d devices with data, expected 1", health.DevicesWithData)
	}

	// The fill average spans both devices; the consumption average only the one
	// with sufficient data
	if health.AvgFillPercent == nil || *health.AvgFillPercent != 70 {
		t.Errorf("Expected an average fill of 70%%")
	}
	if health.AvgDailyConsumptionLitres == nil || *health.AvgDailyConsumptionLitres != 120 {
		t.Errorf("Expected an average consumption of 120 litres")
	}
}

func TestAggregateFleetLevelBands(t *testing.T) {
	cfg := baseTestConfig().Analysis // low 35, critical 20

	comfortable := 60.0
	low := 30.0
	critical := 10.0
	all := []DeviceAnalytics{
		{CurrentLevelPercent: &comfortable},
		{CurrentLevelPercent: &low},
		{CurrentLevelPercent: &critical},
		{}, // level unknown: no band, no average contribution
	}

	health := AggregateFleet(mustParseTime("2024-03-20T12:00:00Z"), all, cfg)

	// A critical device is also a low device
	if health.BelowLowLevel != 2 {
		t.Errorf("Got %d below low, expected 2", health.BelowLowLevel)
	}
	if health.BelowCriticalLevel != 1 {
		t.Errorf("Got %d below critical, expected 1", health.BelowCriticalLevel)
	}
	if health.AvgFillPercent == nil || !almostEqual(*health.AvgFillPercent, 100.0/3.0, 0.001) {
		t.Errorf("Expected the fill average over the three known levels")
	}
}

func TestAggregateFleetAlertTallies(t *testing.T) {
	cfg := baseTestConfig().Analysis

	all := []DeviceAnalytics{
		{Alerts: AlertFlags{UnusualConsumption: true, PotentialLeak: true}},
		{Alerts: AlertFlags{PotentialLeak: true, SensorDrift: true}},
		{Alerts: AlertFlags{ConnectivityIssue: true}},
		{},
	}

	health := AggregateFleet(mustParseTime("2024-03-20T12:00:00Z"), all, cfg)

	if health.Alerts.UnusualConsumption != 1 {
		t.Errorf("Got %d unusual-consumption alerts, expected 1", health.Alerts.UnusualConsumption)
	}
	if health.Alerts.PotentialLeak != 2 {
		t.Errorf("Got %d leak alerts, expected 2", health.Alerts.PotentialLeak)
	}
	if health.Alerts.ConnectivityIssue != 1 {
		t.Errorf("Got %d connectivity alerts, expected 1", health.Alerts.ConnectivityIssue)
	}
	if health.Alerts.SensorDrift != 1 {
		t.Errorf("Got %d drift alerts, expected 1", health.Alerts.SensorDrift)
	}
	if health.OnlineDevices != 3 {
		t.Errorf("Got %d online devices, expected 3", health.OnlineDevices)
	}
}

func TestAggregateFleetEmpty(t *testing.T) {
	cfg := baseTestConfig().Analysis

	health := AggregateFleet(mustParseTime("2024-03-20T12:00:00Z"), nil, cfg)

	if health.TotalDevices != 0 || health.OnlineDevices != 0 || health.DevicesWithData != 0 {
		t.Errorf("Expected all counts at zero, got %+v", health)
	}
	if health.AvgFillPercent != nil || health.AvgDailyConsumptionLitres != nil {
		t.Errorf("Empty fleets have no averages")
	}
}
