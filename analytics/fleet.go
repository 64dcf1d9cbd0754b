package analytics

import (
	"time"

	"github.com/fueltrace/tankmonitor/config"
)

// AlertTally counts how many devices raise each alert flag.
type AlertTally struct {
	UnusualConsumption int
	PotentialLeak      int
	ConnectivityIssue  int
	SensorDrift        int
}

// FleetHealth is the aggregate status across all monitored devices at a point in
// time. It is always recomputable by folding over the current per-device analytics -
// nothing here needs independent persistence.
type FleetHealth struct {
	At time.Time

	TotalDevices  int
	OnlineDevices int
	// DevicesWithData counts the devices whose window held enough readings for a full
	// analysis. The remainder still count towards the totals but are left out of the
	// averages below.
	DevicesWithData    int
	BelowLowLevel      int // includes the devices that are also below critical
	BelowCriticalLevel int

	// Unweighted arithmetic means across the devices that carry the value. Nil when no
	// device does.
	AvgFillPercent            *float64
	AvgDailyConsumptionLitres *float64

	Alerts AlertTally
}

// AggregateFleet folds per-device analytics into one fleet-level summary.
//
// Averages are unweighted means across devices: a device counts into the fill average
// when its current level is known, and into the consumption average only when it had
// sufficient data - insufficient-data devices are never coerced to zero, which would
// bias the fleet averages downward.
func AggregateFleet(at time.Time, all []DeviceAnalytics, cfg config.AnalysisConfig) FleetHealth {
	health := FleetHealth{
		At:           at,
		TotalDevices: len(all),
	}

	fillTotal := 0.0
	fillCount := 0
	consumptionTotal := 0.0
	consumptionCount := 0

	for _, device := range all {
		if !device.Alerts.ConnectivityIssue {
			health.OnlineDevices++
		}
		if device.HasSufficientData {
			health.DevicesWithData++

			consumptionTotal += device.RollingAvgLitres
			consumptionCount++
		}

		if device.CurrentLevelPercent != nil {
			percent := *device.CurrentLevelPercent
			if percent < cfg.LowLevelPercent {
				health.BelowLowLevel++
			}
			if percent < cfg.CriticalLevelPercent {
				health.BelowCriticalLevel++
			}
			fillTotal += percent
			fillCount++
		}

		if device.Alerts.UnusualConsumption {
			health.Alerts.UnusualConsumption++
		}
		if device.Alerts.PotentialLeak {
			health.Alerts.PotentialLeak++
		}
		if device.Alerts.ConnectivityIssue {
			health.Alerts.ConnectivityIssue++
		}
		if device.Alerts.SensorDrift {
			health.Alerts.SensorDrift++
		}
	}

	if fillCount > 0 {
		avg := fillTotal / float64(fillCount)
		health.AvgFillPercent = &avg
	}
	if consumptionCount > 0 {
		avg := consumptionTotal / float64(consumptionCount)
		health.AvgDailyConsumptionLitres = &avg
	}

	return health
}
