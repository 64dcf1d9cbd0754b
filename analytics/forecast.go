package analytics

import (
	"time"

	"github.com/fueltrace/tankmonitor/config"
	"github.com/fueltrace/tankmonitor/telemetry"
	timeutils "github.com/fueltrace/tankmonitor/time_utils"
)

// Forecast holds the forward-looking estimates for one device. Every field is nil
// when there is no trend to extrapolate from - never Inf, NaN or a negative guess.
type Forecast struct {
	// DaysToCritical projects how long until the fill level reaches the critical
	// threshold at the current rolling percent rate, floored at zero.
	DaysToCritical *float64

	AvgRefillIntervalDays *float64
	PredictedNextRefill   *time.Time

	// RefillEfficiencyPercent is the average refill volume as a percentage of the tank
	// capacity. When the registry holds no capacity hint the maximum litres level seen
	// in the window stands in for it - a practical proxy, not a guarantee, and noted
	// as such to consumers.
	RefillEfficiencyPercent *float64
}

// EstimateForecast projects days-to-critical, the next refill date and the refill
// efficiency from the analyzed window.
//
// `percentRate` is the rolling daily percent consumption (see ConsumptionResult); a
// nil or non-positive rate means there is no consumption trend and the days-to-critical
// forecast stays nil. Likewise fewer than cfg.MinReadings readings give no forecast.
func EstimateForecast(readings []telemetry.Reading, refills []RefillEvent, percentRate *float64, device telemetry.Device, cfg config.AnalysisConfig) Forecast {
	forecast := Forecast{}

	current := currentLevelPercent(device, readings)
	if len(readings) >= cfg.MinReadings && current != nil && percentRate != nil && *percentRate > 0 {
		days := (*current - cfg.CriticalLevelPercent) / *percentRate
		if days < 0 {
			days = 0
		}
		forecast.DaysToCritical = &days
	}

	// Refill intervals need at least two refills to produce one observation
	intervalTotal := 0.0
	intervalCount := 0
	for _, refill := range refills {
		if refill.DaysSinceLast != nil {
			intervalTotal += *refill.DaysSinceLast
			intervalCount++
		}
	}
	if intervalCount > 0 {
		interval := intervalTotal / float64(intervalCount)
		forecast.AvgRefillIntervalDays = &interval

		next := timeutils.AddDays(refills[len(refills)-1].Time, interval)
		forecast.PredictedNextRefill = &next
	}

	volumeTotal := 0.0
	volumeCount := 0
	for _, refill := range refills {
		if refill.VolumeAddedLitres != nil {
			volumeTotal += *refill.VolumeAddedLitres
			volumeCount++
		}
	}
	if volumeCount > 0 {
		capacity := device.CapacityHintLitres
		if capacity == nil {
			capacity = observedMaxLitres(readings)
		}
		if capacity != nil && *capacity > 0 {
			efficiency := volumeTotal / float64(volumeCount) / *capacity * 100
			forecast.RefillEfficiencyPercent = &efficiency
		}
	}

	return forecast
}

// currentLevelPercent prefers the registry's live value and falls back to the most
// recent reading that carries a percent channel.
func currentLevelPercent(device telemetry.Device, readings []telemetry.Reading) *float64 {
	if device.CurrentLevelPercent != nil {
		return device.CurrentLevelPercent
	}
	for i := len(readings) - 1; i >= 0; i-- {
		if readings[i].LevelPercent != nil {
			return readings[i].LevelPercent
		}
	}
	return nil
}

// observedMaxLitres returns the highest litres level seen in the window, or nil when
// no reading carried a litres channel.
func observedMaxLitres(readings []telemetry.Reading) *float64 {
	var max *float64
	for _, reading := range readings {
		if reading.LevelLitres == nil {
			continue
		}
		if max == nil || *reading.LevelLitres > *max {
			max = reading.LevelLitres
		}
	}
	return max
}
