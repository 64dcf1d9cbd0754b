package analytics

import (
	"math"
	"time"

	"github.com/fueltrace/tankmonitor/config"
	"github.com/fueltrace/tankmonitor/telemetry"
)

// DetectAnomalies evaluates the independent anomaly checks for one device. Each flag
// stands on its own: a leaking device with a flat battery raises both.
//
// `now` is supplied by the caller so that staleness is judged against the scan time,
// not against whenever this function happens to run.
func DetectAnomalies(now time.Time, readings []telemetry.Reading, samples []ConsumptionSample, refills []RefillEvent, report telemetry.NormalizeReport, cfg config.AnomalyConfig) AlertFlags {
	return AlertFlags{
		UnusualConsumption: unusualConsumption(samples, cfg),
		PotentialLeak:      nightLeak(readings, refills, cfg),
		ConnectivityIssue:  connectivityIssue(now, readings, cfg),
		SensorDrift:        sensorDrift(report, cfg),
	}
}

// unusualConsumption reports whether the most recent day's consumption deviates from
// the history by more than the configured multiple of the historical standard
// deviation. The latest sample is compared against the distribution of the earlier
// samples only, so a genuine outlier cannot inflate its own baseline.
func unusualConsumption(samples []ConsumptionSample, cfg config.AnomalyConfig) bool {
	if len(samples) < cfg.MinSamples {
		return false
	}

	latest := samples[len(samples)-1]

	var history meanVariance
	for _, sample := range samples[:len(samples)-1] {
		history.update(sample.LitresConsumed)
	}

	return math.Abs(latest.LitresConsumed-history.mean) > cfg.StdDevMultiplier*history.stdDev()
}

// nightLeak reports whether the device shows sustained overnight consumption: at
// least cfg.MinNights distinct nights whose total drop within the night window
// exceeded the floor. A night containing a refill is not counted - deliveries are
// sometimes made in the small hours and the level changes around them tell us nothing
// about leakage.
func nightLeak(readings []telemetry.Reading, refills []RefillEvent, cfg config.AnomalyConfig) bool {
	window := cfg.NightWindow
	if window.Start.Location == nil {
		window = window.WithLocation(time.UTC)
	}

	refillNights := map[int64]bool{}
	for _, refill := range refills {
		if period, ok := window.AbsolutePeriod(refill.Time); ok {
			refillNights[period.Start.Unix()] = true
		}
	}

	// Accumulate the drop per night, keyed by the night's window start
	nightDrops := map[int64]float64{}
	for i := 1; i < len(readings); i++ {
		prev := readings[i-1]
		curr := readings[i]

		if prev.LevelLitres == nil || curr.LevelLitres == nil {
			continue
		}

		period, ok := window.AbsolutePeriod(curr.Time)
		if !ok || !period.Contains(prev.Time) {
			continue
		}

		drop := *prev.LevelLitres - *curr.LevelLitres
		if drop <= 0 {
			continue
		}
		nightDrops[period.Start.Unix()] += drop
	}

	nights := 0
	for night, drop := range nightDrops {
		if refillNights[night] {
			continue
		}
		if drop > cfg.NightFloorLitres {
			nights++
		}
	}

	return nights >= cfg.MinNights
}

// connectivityIssue reports whether the device looks unreachable: it has no readings
// in the window at all, its latest reading declared itself offline, or the latest
// reading is older than the staleness threshold.
func connectivityIssue(now time.Time, readings []telemetry.Reading, cfg config.AnomalyConfig) bool {
	if len(readings) == 0 {
		return true
	}

	last := readings[len(readings)-1]
	if !last.Online {
		return true
	}

	return now.Sub(last.Time).Hours() > cfg.StalenessHours
}

// sensorDrift reports whether the window held enough faulty rows (vendor system
// errors plus out-of-range values) to suggest the sensor needs recalibrating.
func sensorDrift(report telemetry.NormalizeReport, cfg config.AnomalyConfig) bool {
	return report.SystemErrors+report.OutOfRange >= cfg.FaultCount
}
