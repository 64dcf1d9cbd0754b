package analytics

import (
	"time"

	"github.com/fueltrace/tankmonitor/config"
	"github.com/fueltrace/tankmonitor/telemetry"
	timeutils "github.com/fueltrace/tankmonitor/time_utils"
)

// RefillEvent represents a detected sharp upward change in fill level between two
// consecutive readings. Refill pairs are excluded from the consumption calculations.
type RefillEvent struct {
	// The time of the reading at which the rise was observed (the later of the pair).
	Time time.Time

	// VolumeAddedLitres is the rise on the litres channel. It is nil when the refill
	// was detected on the percent channel only, otherwise it is always > 0.
	VolumeAddedLitres *float64
	RisePercent       *float64

	BeforeLitres  *float64
	AfterLitres   *float64
	BeforePercent *float64
	AfterPercent  *float64

	// DaysSinceLast is measured to the previously detected refill, not to the previous
	// reading, so that refill intervals can feed the next-refill forecast. It is nil
	// for the first refill in the window.
	DaysSinceLast *float64
}

// DetectRefills scans consecutive reading pairs and returns the rises that qualify as
// refills under the given thresholds, in chronological order. The slice is empty when
// nothing qualifies.
//
// The readings must be sorted ascending by time. The first reading can never be a
// refill as it has no predecessor.
func DetectRefills(readings []telemetry.Reading, cfg config.RefillConfig) []RefillEvent {
	var events []RefillEvent
	var lastRefillTime *time.Time

	for i := 1; i < len(readings); i++ {
		event, ok := classifyRefill(readings[i-1], readings[i], cfg)
		if !ok {
			continue
		}

		if lastRefillTime != nil {
			days := timeutils.DaysBetween(*lastRefillTime, event.Time)
			event.DaysSinceLast = &days
		}
		t := event.Time
		lastRefillTime = &t

		events = append(events, event)
	}

	return events
}

// classifyRefill applies the refill thresholds to one consecutive pair of readings.
//
// When both readings carry a litres level the litres rules decide: the rise is a
// refill if it exceeds the absolute floor, or if it exceeds the relative floor as a
// percentage of the previous level whilst also clearing the relative minimum. A
// previous level of zero skips the relative rule to avoid dividing by zero.
//
// When the litres channel is missing on either side the percent channel is used as a
// fallback with its own simpler floor.
func classifyRefill(prev, curr telemetry.Reading, cfg config.RefillConfig) (RefillEvent, bool) {

	if prev.LevelLitres != nil && curr.LevelLitres != nil {
		delta := *curr.LevelLitres - *prev.LevelLitres

		isRefill := delta > cfg.AbsoluteLitres
		if !isRefill && *prev.LevelLitres > 0 {
			risePercent := delta / *prev.LevelLitres * 100
			isRefill = risePercent > cfg.RelativePercent && delta > cfg.RelativeMinLitres
		}
		if !isRefill {
			return RefillEvent{}, false
		}

		event := RefillEvent{
			Time:              curr.Time,
			VolumeAddedLitres: &delta,
			BeforeLitres:      prev.LevelLitres,
			AfterLitres:       curr.LevelLitres,
			BeforePercent:     prev.LevelPercent,
			AfterPercent:      curr.LevelPercent,
		}
		if prev.LevelPercent != nil && curr.LevelPercent != nil {
			rise := *curr.LevelPercent - *prev.LevelPercent
			event.RisePercent = &rise
		}
		return event, true
	}

	if prev.LevelPercent != nil && curr.LevelPercent != nil {
		rise := *curr.LevelPercent - *prev.LevelPercent
		if rise <= cfg.PercentRise {
			return RefillEvent{}, false
		}
		return RefillEvent{
			Time:          curr.Time,
			RisePercent:   &rise,
			BeforePercent: prev.LevelPercent,
			AfterPercent:  curr.LevelPercent,
		}, true
	}

	return RefillEvent{}, false
}
