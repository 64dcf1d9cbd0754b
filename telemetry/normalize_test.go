package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeSortsAndStamps(t *testing.T) {
	deviceID := uuid.New()

	rows := []RawReading{
		{Time: "2024-03-19T12:00:00Z", LevelLitres: 900.0, Online: true},
		{Time: "2024-03-19T06:00:00Z", LevelLitres: 1000.0, Online: true},
		{Time: "2024-03-19T18:00:00Z", LevelLitres: 800.0, Online: true},
	}

	readings, report := Normalize(deviceID, rows, time.UTC)

	assert.Equal(t, 3, len(readings))
	assert.Equal(t, 3, report.Kept)
	assert.Equal(t, 3, report.TotalRows)

	for i, reading := range readings {
		assert.Equal(t, deviceID, reading.DeviceID)
		if i > 0 && !readings[i-1].Time.Before(reading.Time) {
			t.Errorf("Readings not in ascending time order at index %d", i)
		}
	}
	assert.Equal(t, 1000.0, *readings[0].LevelLitres)
	assert.Equal(t, 800.0, *readings[2].LevelLitres)
}

func TestNormalizeCellParsing(t *testing.T) {

	type subTest struct {
		name              string
		cell              any
		expected          *float64
		expectedMalformed int
	}

	v := func(f float64) *float64 { return &f }

	subTests := []subTest{
		{"JSONNumber", 42.5, v(42.5), 0},
		{"NumericString", "42.5", v(42.5), 0},
		{"IntegerString", " 1200 ", v(1200), 0},
		{"Int", 7, v(7), 0},
		{"Nil", nil, nil, 0},
		{"EmptyString", "", nil, 0},
		{"Garbage", "n/a", nil, 1},
		{"WrongType", []string{"nope"}, nil, 1},
		{"NaNString", "NaN", nil, 1},
		{"InfString", "Inf", nil, 1},
		{"NegativeInfString", "-Inf", nil, 1},
		{"InfinityString", "Infinity", nil, 1},
		{"NaNFloat", math.NaN(), nil, 1},
	}
	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			rows := []RawReading{{Time: "2024-03-19T06:00:00Z", LevelLitres: subTest.cell}}
			readings, report := Normalize(uuid.New(), rows, time.UTC)

			if len(readings) != 1 {
				t.Fatalf("Expected 1 reading, got %d", len(readings))
			}
			got := readings[0].LevelLitres
			if subTest.expected == nil {
				if got != nil {
					t.Errorf("Expected nil, got %f", *got)
				}
			} else {
				if got == nil {
					t.Fatalf("Expected %f, got nil", *subTest.expected)
				}
				if *got != *subTest.expected {
					t.Errorf("Got %f, expected %f", *got, *subTest.expected)
				}
			}
			if report.MalformedNumeric != subTest.expectedMalformed {
				t.Errorf("MalformedNumeric got %d, expected %d", report.MalformedNumeric, subTest.expectedMalformed)
			}
		})
	}
}

func TestNormalizeRangeChecks(t *testing.T) {
	rows := []RawReading{
		{Time: "2024-03-19T06:00:00Z", LevelPercent: 105.0, LevelLitres: -20.0},
		{Time: "2024-03-19T07:00:00Z", LevelPercent: 55.0, LevelLitres: 500.0},
	}

	readings, report := Normalize(uuid.New(), rows, time.UTC)

	assert.Equal(t, 2, len(readings))
	assert.Nil(t, readings[0].LevelPercent)
	assert.Nil(t, readings[0].LevelLitres)
	assert.Equal(t, 2, report.OutOfRange)
	assert.Equal(t, 55.0, *readings[1].LevelPercent)
	assert.Equal(t, 500.0, *readings[1].LevelLitres)
}

func TestNormalizeDropsBadTimestamps(t *testing.T) {
	rows := []RawReading{
		{Time: "not-a-time", LevelLitres: 900.0},
		{Time: "", LevelLitres: 901.0},
		{Time: "2024-03-19T06:00:00Z", LevelLitres: 902.0},
	}

	readings, report := Normalize(uuid.New(), rows, time.UTC)

	assert.Equal(t, 1, len(readings))
	assert.Equal(t, 2, report.DroppedBadTime)
	assert.Equal(t, 1, report.Kept)
}

func TestNormalizeDuplicateTimestampsKeepLastSeen(t *testing.T) {
	rows := []RawReading{
		{Time: "2024-03-19T06:00:00Z", LevelLitres: 111.0},
		{Time: "2024-03-19T07:00:00Z", LevelLitres: 500.0},
		{Time: "2024-03-19T06:00:00Z", LevelLitres: 222.0},
	}

	readings, report := Normalize(uuid.New(), rows, time.UTC)

	if len(readings) != 2 {
		t.Fatalf("Expected 2 readings, got %d", len(readings))
	}
	// The later input row wins the duplicated 06:00 slot
	assert.Equal(t, 222.0, *readings[0].LevelLitres)
	assert.Equal(t, 1, report.DuplicatesDropped)
	assert.Equal(t, 2, report.Kept)
}

func TestNormalizeCountsSystemErrors(t *testing.T) {
	rows := []RawReading{
		{Time: "2024-03-19T06:00:00Z", Status: "ok"},
		{Time: "2024-03-19T07:00:00Z", Status: "ERROR"},
		{Time: "2024-03-19T08:00:00Z", Status: "fault"},
	}

	readings, report := Normalize(uuid.New(), rows, time.UTC)

	assert.Equal(t, 3, len(readings))
	assert.Equal(t, 2, report.SystemErrors)
}

func TestNormalizeEmptyInput(t *testing.T) {
	readings, report := Normalize(uuid.New(), nil, time.UTC)

	assert.Equal(t, 0, len(readings))
	assert.Equal(t, 0, report.TotalRows)
	assert.Equal(t, 0, report.Kept)
}

func TestNormalizeAppliesLocation(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Fatalf("Failed to load London time: %v", err)
	}

	rows := []RawReading{{Time: "2023-08-21T23:30:00Z", LevelLitres: 900.0}}

	readings, _ := Normalize(uuid.New(), rows, london)

	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(readings))
	}
	// 23:30 UTC in summer is 00:30 the next day in London
	assert.Equal(t, london, readings[0].Time.Location())
	assert.Equal(t, 22, readings[0].Time.Day())
}
