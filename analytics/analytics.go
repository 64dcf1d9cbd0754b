package analytics

import (
	"math"
	"time"

	"github.com/fueltrace/tankmonitor/config"
	"github.com/fueltrace/tankmonitor/telemetry"
	"github.com/google/uuid"
)

// Trend labels the direction of a device's consumption over the analysis window.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// AlertFlags holds the independent anomaly indicators for one device. The checks are
// not mutually exclusive - a device can raise several at once.
type AlertFlags struct {
	UnusualConsumption bool
	PotentialLeak      bool
	ConnectivityIssue  bool
	SensorDrift        bool
}

// DeviceAnalytics is the aggregate analysis output for one device over one window of
// readings. It is always a fully renderable shape: when the window held too little
// data the rates are zero, the forecasts nil and HasSufficientData is false, so that
// consumers can show a neutral placeholder rather than an error.
type DeviceAnalytics struct {
	DeviceID uuid.UUID
	// At is the analysis time supplied by the caller, not a clock read.
	At time.Time

	HasSufficientData bool
	ReadingCount      int

	CurrentLevelPercent *float64
	ObservedMaxLitres   *float64

	DailyAvgLitres          float64
	RollingAvgLitres        float64
	PreviousDayLitres       float64
	WeeklyProjectedLitres   float64
	MonthlyProjectedLitres  float64
	RollingDailyPercentRate *float64

	Trend            Trend
	DaysToCritical   *float64
	ReliabilityScore float64 // 0-100

	RefillCount             int
	AvgRefillIntervalDays   *float64
	PredictedNextRefill     *time.Time
	RefillEfficiencyPercent *float64

	Alerts AlertFlags

	// The underlying series are included for chart consumers.
	Refills     []RefillEvent
	Consumption []ConsumptionSample
}

// AnalyzeDevice runs the full analysis for one device over one window of readings:
// refill detection, consumption rates, trend and anomaly classification and the
// forward-looking forecasts.
//
// The readings must already be normalized (sorted ascending, deduplicated) - see
// telemetry.Normalize. `now` is supplied by the caller, normally the scan time:
// AnalyzeDevice never reads the clock itself, so the same inputs always produce the
// same output.
func AnalyzeDevice(now time.Time, device telemetry.Device, readings []telemetry.Reading, report telemetry.NormalizeReport, cfg config.Config) DeviceAnalytics {
	loc := cfg.Location.Loc
	if loc == nil {
		loc = time.UTC
	}

	analytics := DeviceAnalytics{
		DeviceID:     device.ID,
		At:           now,
		ReadingCount: len(readings),
		Trend:        TrendStable,
	}

	refills := DetectRefills(readings, cfg.Refill)
	consumption := CalcConsumption(readings, refills, cfg.Consumption, loc)

	analytics.Refills = refills
	analytics.Consumption = consumption.Samples
	analytics.RefillCount = len(refills)
	analytics.CurrentLevelPercent = currentLevelPercent(device, readings)
	analytics.ObservedMaxLitres = observedMaxLitres(readings)
	analytics.Alerts = DetectAnomalies(now, readings, consumption.Samples, refills, report, cfg.Anomaly)
	analytics.ReliabilityScore = reliabilityScore(readings, report)

	if len(readings) < cfg.Analysis.MinReadings {
		// Not enough signal to trust any rate or forecast. The chartable series and the
		// alert flags above are kept - in particular a device that has gone quiet still
		// raises its connectivity flag.
		return analytics
	}
	analytics.HasSufficientData = true

	analytics.DailyAvgLitres = consumption.DailyAvgLitres
	analytics.RollingAvgLitres = consumption.RollingAvgLitres
	analytics.PreviousDayLitres = consumption.PreviousDayLitres
	analytics.WeeklyProjectedLitres = consumption.WeeklyProjectedLitres
	analytics.MonthlyProjectedLitres = consumption.MonthlyProjectedLitres
	analytics.RollingDailyPercentRate = consumption.RollingDailyPercentRate

	analytics.Trend = ClassifyTrend(consumption.Samples, cfg.Analysis.TrendChangePercent)

	forecast := EstimateForecast(readings, refills, consumption.RollingDailyPercentRate, device, cfg.Analysis)
	analytics.DaysToCritical = forecast.DaysToCritical
	analytics.AvgRefillIntervalDays = forecast.AvgRefillIntervalDays
	analytics.PredictedNextRefill = forecast.PredictedNextRefill
	analytics.RefillEfficiencyPercent = forecast.RefillEfficiencyPercent

	return analytics
}

// reliabilityScore scores the health of a device's reporting between 0 and 100,
// weighing the online ratio of its readings against the fraction of faulty rows seen
// at the normalization boundary.
func reliabilityScore(readings []telemetry.Reading, report telemetry.NormalizeReport) float64 {
	if len(readings) == 0 {
		return 0
	}

	online := 0
	for _, reading := range readings {
		if reading.Online {
			online++
		}
	}
	onlineRatio := float64(online) / float64(len(readings))

	faultRatio := 0.0
	if report.TotalRows > 0 {
		faults := report.SystemErrors + report.OutOfRange + report.MalformedNumeric + report.DroppedBadTime
		faultRatio = math.Min(1, float64(faults)/float64(report.TotalRows))
	}

	return 100 * (0.6*onlineRatio + 0.4*(1-faultRatio))
}
