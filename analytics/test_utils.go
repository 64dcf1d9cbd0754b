package analytics

import (
	"math"
	"time"

	"github.com/fueltrace/tankmonitor/config"
	"github.com/fueltrace/tankmonitor/telemetry"
	timeutils "github.com/fueltrace/tankmonitor/time_utils"
)

// This file contains utilities to help with testing

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
	}
}

// almostEqual compares two floats, allowing for the given tolerance
func almostEqual(a, b, tolerance float64) bool {
	if a == b {
		// This is to support infinite float values
		return true
	}

	diff := math.Abs(a - b)
	return diff < tolerance
}

// mustParseTime returns the time.Time associated with the given string or panics.
func mustParseTime(str string) time.Time {
	time, err := time.Parse(time.RFC3339, str)
	if err != nil {
		panic(err)
	}
	return time
}

// litresReading builds an online reading with only the litres channel set.
func litresReading(timeStr string, litres float64) telemetry.Reading {
	return telemetry.Reading{
		Time:        mustParseTime(timeStr),
		LevelLitres: &litres,
		Online:      true,
	}
}

// percentReading builds an online reading with only the percent channel set.
func percentReading(timeStr string, percent float64) telemetry.Reading {
	return telemetry.Reading{
		Time:         mustParseTime(timeStr),
		LevelPercent: &percent,
		Online:       true,
	}
}

// fullReading builds an online reading with both level channels set.
func fullReading(timeStr string, litres, percent float64) telemetry.Reading {
	return telemetry.Reading{
		Time:         mustParseTime(timeStr),
		LevelLitres:  &litres,
		LevelPercent: &percent,
		Online:       true,
	}
}
