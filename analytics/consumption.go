package analytics

import (
	"sort"
	"time"

	"github.com/fueltrace/tankmonitor/config"
	"github.com/fueltrace/tankmonitor/telemetry"
	timeutils "github.com/fueltrace/tankmonitor/time_utils"
)

// ConsumptionSample is one calendar day's net consumption for a device. All qualifying
// level decreases within the day are summed into the one sample, so a device that
// reports hourly still yields a single figure per day.
type ConsumptionSample struct {
	Date           time.Time // midnight in the analysis location
	LitresConsumed float64   // always >= 0
}

// ConsumptionResult holds the per-day consumption series and the rates derived from it.
type ConsumptionResult struct {
	Samples []ConsumptionSample

	DailyAvgLitres         float64
	RollingAvgLitres       float64
	PreviousDayLitres      float64
	WeeklyProjectedLitres  float64
	MonthlyProjectedLitres float64

	// RollingDailyPercentRate is the mean daily drop on the percent channel over the
	// rolling window. It drives the days-to-critical forecast and is nil when the
	// window held no usable percent decreases.
	RollingDailyPercentRate *float64
}

// CalcConsumption computes the daily consumption series and rates for one device.
//
// For each consecutive pair of readings that was not classified as a refill, a level
// decrease within the plausibility ceiling accrues to the calendar day (in `loc`) of
// the later reading. Decreases above the ceiling are sensor glitches: they are
// discarded entirely, not clamped. Rises that fell short of the refill thresholds are
// ignored - consumption is never negative.
//
// The litres and percent channels are tracked in parallel under their own ceilings: a
// pair flagged as a refill is excluded from both.
//
// Fewer than 2 readings yield an empty result.
func CalcConsumption(readings []telemetry.Reading, refills []RefillEvent, cfg config.ConsumptionConfig, loc *time.Location) ConsumptionResult {
	if loc == nil {
		loc = time.UTC
	}

	result := ConsumptionResult{}
	if len(readings) < 2 {
		return result
	}

	refillTimes := make(map[int64]bool, len(refills))
	for _, refill := range refills {
		refillTimes[refill.Time.UnixNano()] = true
	}

	litresByDay := map[int64]float64{}
	percentByDay := map[int64]float64{}

	for i := 1; i < len(readings); i++ {
		prev := readings[i-1]
		curr := readings[i]

		if refillTimes[curr.Time.UnixNano()] {
			continue
		}

		day := timeutils.FloorDay(curr.Time, loc).Unix()

		if prev.LevelLitres != nil && curr.LevelLitres != nil {
			drop := *prev.LevelLitres - *curr.LevelLitres
			if drop > 0 && drop <= cfg.MaxDailyLitres {
				litresByDay[day] += drop
			}
		}

		if prev.LevelPercent != nil && curr.LevelPercent != nil {
			drop := *prev.LevelPercent - *curr.LevelPercent
			if drop > 0 && drop <= cfg.MaxDailyPercent {
				percentByDay[day] += drop
			}
		}
	}

	result.Samples = samplesFromDays(litresByDay, loc)

	lastDay := timeutils.FloorDay(readings[len(readings)-1].Time, loc)
	windowStart := lastDay.AddDate(0, 0, -(cfg.RollingWindowDays - 1))

	result.DailyAvgLitres = meanConsumption(result.Samples, noDateFilter)
	result.RollingAvgLitres = meanConsumption(result.Samples, windowStart)
	result.PreviousDayLitres = litresByDay[lastDay.AddDate(0, 0, -1).Unix()]
	result.WeeklyProjectedLitres = result.DailyAvgLitres * 7
	result.MonthlyProjectedLitres = result.DailyAvgLitres * 30

	percentTotal := 0.0
	percentDays := 0
	for day, drop := range percentByDay {
		if time.Unix(day, 0).In(loc).Before(windowStart) {
			continue
		}
		percentTotal += drop
		percentDays++
	}
	if percentDays > 0 {
		rate := percentTotal / float64(percentDays)
		result.RollingDailyPercentRate = &rate
	}

	return result
}

// samplesFromDays converts a day-keyed accumulation map into a date-ordered sample slice.
func samplesFromDays(byDay map[int64]float64, loc *time.Location) []ConsumptionSample {
	if len(byDay) == 0 {
		return nil
	}

	days := make([]int64, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	samples := make([]ConsumptionSample, 0, len(days))
	for _, day := range days {
		samples = append(samples, ConsumptionSample{
			Date:           time.Unix(day, 0).In(loc),
			LitresConsumed: byDay[day],
		})
	}
	return samples
}

// noDateFilter includes every sample when passed to meanConsumption.
var noDateFilter = time.Time{}

// meanConsumption returns the arithmetic mean of the samples dated on or after `from`.
// A zero `from` includes everything. Days without a sample do not contribute - they
// are absent, not zero.
func meanConsumption(samples []ConsumptionSample, from time.Time) float64 {
	total := 0.0
	count := 0
	for _, sample := range samples {
		if !from.IsZero() && sample.Date.Before(from) {
			continue
		}
		total += sample.LitresConsumed
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}
