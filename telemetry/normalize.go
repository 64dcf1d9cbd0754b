package telemetry

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RawReading is the untrusted row shape delivered by the backend. The numeric cells
// arrive inconsistently as JSON numbers or strings depending on which ingestion path
// wrote the row, so they are typed as `any` and parsed by Normalize.
type RawReading struct {
	ID             string `json:"id"`
	DeviceID       string `json:"device_id"`
	Time           string `json:"time"`
	LevelPercent   any    `json:"level_percent"`
	LevelLitres    any    `json:"level_litres"`
	BatteryVoltage any    `json:"battery_voltage"`
	Temperature    any    `json:"temperature"`
	Online         bool   `json:"online"`
	Status         string `json:"status"`
}

// NormalizeReport counts the rows that Normalize dropped or repaired. The fault
// counters feed the sensor drift check downstream.
type NormalizeReport struct {
	TotalRows         int
	Kept              int
	DroppedBadTime    int
	DuplicatesDropped int
	MalformedNumeric  int
	OutOfRange        int
	SystemErrors      int
}

// Normalize maps raw backend rows into validated Readings: numeric cells are parsed
// (missing or unparseable values become nil, never NaN and never an error), percent
// values outside 0-100 and negative litres values are nilled and counted, rows without
// a usable timestamp are dropped, and the output is sorted ascending by time with
// duplicate timestamps resolved by keeping the last-seen input row.
//
// Normalize is a pure function: it performs no I/O and the same input always yields
// the same output.
func Normalize(deviceID uuid.UUID, rows []RawReading, loc *time.Location) ([]Reading, NormalizeReport) {
	if loc == nil {
		loc = time.UTC
	}

	report := NormalizeReport{TotalRows: len(rows)}

	readings := make([]Reading, 0, len(rows))
	for _, row := range rows {
		t, err := time.Parse(time.RFC3339, row.Time)
		if err != nil || t.IsZero() {
			report.DroppedBadTime++
			continue
		}

		reading := Reading{
			Time:     t.In(loc),
			DeviceID: deviceID,
			Online:   row.Online,
		}

		reading.LevelPercent = parseCell(row.LevelPercent, &report)
		if reading.LevelPercent != nil && (*reading.LevelPercent < 0 || *reading.LevelPercent > 100) {
			reading.LevelPercent = nil
			report.OutOfRange++
		}

		reading.LevelLitres = parseCell(row.LevelLitres, &report)
		if reading.LevelLitres != nil && *reading.LevelLitres < 0 {
			reading.LevelLitres = nil
			report.OutOfRange++
		}

		reading.BatteryVoltage = parseCell(row.BatteryVoltage, &report)
		reading.Temperature = parseCell(row.Temperature, &report)

		if isSystemError(row.Status) {
			report.SystemErrors++
		}

		readings = append(readings, reading)
	}

	// A stable sort preserves input order within runs of equal timestamps, so the last
	// element of each run is the last-seen input row.
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Time.Before(readings[j].Time)
	})

	deduped := make([]Reading, 0, len(readings))
	for i, reading := range readings {
		if i+1 < len(readings) && readings[i+1].Time.Equal(reading.Time) {
			report.DuplicatesDropped++
			continue
		}
		deduped = append(deduped, reading)
	}

	report.Kept = len(deduped)
	return deduped, report
}

// parseCell converts a loosely typed numeric cell to a float pointer. Missing values
// (nil or an empty string) return nil without touching the report; values that are
// present but unparseable or non-finite return nil and increment the malformed counter.
func parseCell(v any, report *NormalizeReport) *float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			report.MalformedNumeric++
			return nil
		}
		f = parsed
	default:
		report.MalformedNumeric++
		return nil
	}

	// ParseFloat accepts the spellings "NaN", "Inf" and "Infinity", and the range
	// checks in Normalize cannot catch non-finite values.
	if math.IsNaN(f) || math.IsInf(f, 0) {
		report.MalformedNumeric++
		return nil
	}
	return &f
}

// isSystemError reports whether the vendor status string marks the row as a device
// fault rather than a normal sample.
func isSystemError(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "error", "fault", "system error":
		return true
	}
	return false
}
