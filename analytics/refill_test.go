package analytics

import (
	"testing"

	"github.com/fueltrace/tankmonitor/telemetry"
)

func TestDetectRefillsAbsoluteThreshold(t *testing.T) {
	readings := []telemetry.Reading{
		litresReading("2024-03-19T06:00:00Z", 200),
		litresReading("2024-03-19T12:00:00Z", 1200),
	}

	events := DetectRefills(readings, baseTestConfig().Refill)

	if len(events) != 1 {
		t.Fatalf("Expected 1 refill event, got %d", len(events))
	}
	event := events[0]
	if event.VolumeAddedLitres == nil || *event.VolumeAddedLitres != 1000 {
		t.Errorf("Expected volume added of 1000")
	}
	if *event.BeforeLitres != 200 || *event.AfterLitres != 1200 {
		t.Errorf("Got before/after %f/%f, expected 200/1200", *event.BeforeLitres, *event.AfterLitres)
	}
	if !event.Time.Equal(mustParseTime("2024-03-19T12:00:00Z")) {
		t.Errorf("Event stamped at %v, expected the later reading's time", event.Time)
	}
	if event.DaysSinceLast != nil {
		t.Errorf("The first refill should have no interval")
	}
}

func TestDetectRefillsThresholdRules(t *testing.T) {

	type subTest struct {
		name         string
		beforeLitres float64
		afterLitres  float64
		expectRefill bool
	}

	subTests := []subTest{
		// The absolute rule: a rise of more than 100 litres always qualifies
		{"JustOverAbsolute", 5000, 5101, true},
		{"ExactlyAbsolute", 5000, 5100, false}, // the threshold is exclusive

		// The relative rule: >20% of the previous level and >50 litres
		{"RelativeQualifies", 200, 280, true},        // +40% and +80 litres
		{"RelativeTooSmallShare", 5000, 5090, false}, // +90 litres but only +1.8%
		{"RelativeBelowMinimum", 100, 145, false},    // +45% but only +45 litres

		// A previous level of zero skips the relative rule entirely
		{"ZeroPrevUnderAbsolute", 0, 80, false},
		{"ZeroPrevOverAbsolute", 0, 150, true},

		// Declines and flat lines are never refills
		{"Decline", 1000, 900, false},
		{"Flat", 1000, 1000, false},
	}
	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			readings := []telemetry.Reading{
				litresReading("2024-03-19T06:00:00Z", subTest.beforeLitres),
				litresReading("2024-03-19T12:00:00Z", subTest.afterLitres),
			}

			events := DetectRefills(readings, baseTestConfig().Refill)

			gotRefill := len(events) == 1
			if gotRefill != subTest.expectRefill {
				t.Errorf("Got refill=%t, expected %t", gotRefill, subTest.expectRefill)
			}
			if gotRefill && *events[0].VolumeAddedLitres <= 0 {
				t.Errorf("Refill volume must be positive, got %f", *events[0].VolumeAddedLitres)
			}
		})
	}
}

func TestDetectRefillsPercentFallback(t *testing.T) {
	readings := []telemetry.Reading{
		percentReading("2024-03-19T06:00:00Z", 30),
		percentReading("2024-03-19T12:00:00Z", 85),
		percentReading("2024-03-19T18:00:00Z", 84),
	}

	events := DetectRefills(readings, baseTestConfig().Refill)

	if len(events) != 1 {
		t.Fatalf("Expected 1 refill event, got %d", len(events))
	}
	event := events[0]
	if event.VolumeAddedLitres != nil {
		t.Errorf("A percent-only refill should carry no litres volume")
	}
	if event.RisePercent == nil || *event.RisePercent != 55 {
		t.Errorf("Expected a rise of 55 percentage points")
	}
}

func TestDetectRefillsPercentFallbackBelowFloor(t *testing.T) {
	// An 18 point rise is below the 20 point floor
	readings := []telemetry.Reading{
		percentReading("2024-03-19T06:00:00Z", 30),
		percentReading("2024-03-19T12:00:00Z", 48),
	}

	events := DetectRefills(readings, baseTestConfig().Refill)

	if len(events) != 0 {
		t.Errorf("Expected no refill events, got %d", len(events))
	}
}

func TestDetectRefillsIntervals(t *testing.T) {
	// Two refills exactly 10 days apart, with ordinary consumption readings in between
	// that must not reset the interval clock.
	readings := []telemetry.Reading{
		litresReading("2024-03-01T09:00:00Z", 200),
		litresReading("2024-03-01T10:00:00Z", 1200),
		litresReading("2024-03-06T10:00:00Z", 700),
		litresReading("2024-03-11T09:00:00Z", 300),
		litresReading("2024-03-11T10:00:00Z", 1300),
	}

	events := DetectRefills(readings, baseTestConfig().Refill)

	if len(events) != 2 {
		t.Fatalf("Expected 2 refill events, got %d", len(events))
	}
	if events[0].DaysSinceLast != nil {
		t.Errorf("First refill should have no interval")
	}
	if events[1].DaysSinceLast == nil {
		t.Fatalf("Second refill should carry an interval")
	}
	if !almostEqual(*events[1].DaysSinceLast, 10, 0.001) {
		t.Errorf("Got interval %f, expected 10 days", *events[1].DaysSinceLast)
	}
}

func TestDetectRefillsEmptyAndSingle(t *testing.T) {
	if events := DetectRefills(nil, baseTestConfig().Refill); len(events) != 0 {
		t.Errorf("No readings should yield no events")
	}

	single := []telemetry.Reading{litresReading("2024-03-19T06:00:00Z", 200)}
	if events := DetectRefills(single, baseTestConfig().Refill); len(events) != 0 {
		t.Errorf("A single reading has no predecessor and can never be a refill")
	}
}

func TestDetectRefillsMissingChannels(t *testing.T) {
	// Litres on one side only and percent on one side only: no pair is comparable
	readings := []telemetry.Reading{
		litresReading("2024-03-19T06:00:00Z", 200),
		percentReading("2024-03-19T12:00:00Z", 90),
		{Time: mustParseTime("2024-03-19T18:00:00Z"), Online: true},
	}

	events := DetectRefills(readings, baseTestConfig().Refill)

	if len(events) != 0 {
		t.Errorf("Expected no refill events, got %d", len(events))
	}
}
