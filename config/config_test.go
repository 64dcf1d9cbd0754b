package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes the given yaml to a temp file and returns its path.
func writeConfig(t *testing.T, yamlStr string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(yamlStr), 0o644)
	require.NoError(t, err)
	return path
}

func TestReadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
supabase:
  url: https://example.supabase.co
  schema: fleet
`)

	config, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.supabase.co", config.Supabase.Url)
	assert.Equal(t, "fleet", config.Supabase.Schema)

	assert.Equal(t, 30, config.Analysis.LookbackDays)
	assert.Equal(t, 5, config.Analysis.MinReadings)
	assert.Equal(t, 10.0, config.Analysis.TrendChangePercent)
	assert.Equal(t, 35.0, config.Analysis.LowLevelPercent)
	assert.Equal(t, 20.0, config.Analysis.CriticalLevelPercent)

	assert.Equal(t, 100.0, config.Refill.AbsoluteLitres)
	assert.Equal(t, 20.0, config.Refill.RelativePercent)
	assert.Equal(t, 50.0, config.Refill.RelativeMinLitres)

	assert.Equal(t, 15000.0, config.Consumption.MaxDailyLitres)
	assert.Equal(t, 7, config.Consumption.RollingWindowDays)

	assert.Equal(t, 2.0, config.Anomaly.StdDevMultiplier)
	assert.Equal(t, 25.0, config.Anomaly.StalenessHours)
	assert.Equal(t, 3, config.Anomaly.FaultCount)

	assert.Equal(t, "UTC", config.Location.Loc.String())

	// The default night window is midnight to 5am in the configured location
	assert.Equal(t, 0, config.Anomaly.NightWindow.Start.Hour)
	assert.Equal(t, 5, config.Anomaly.NightWindow.End.Hour)
	assert.Equal(t, config.Location.Loc, config.Anomaly.NightWindow.Start.Location)
}

func TestReadOverrides(t *testing.T) {
	path := writeConfig(t, `
location: Europe/London
analysis:
  lookbackDays: 90
  criticalLevelPercent: 15
refill:
  absoluteLitres: 250
anomaly:
  nightWindow:
    start: "01:30"
    end: "04:00"
monitor:
  scanIntervalSecs: 60
`)

	config, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, 90, config.Analysis.LookbackDays)
	assert.Equal(t, 15.0, config.Analysis.CriticalLevelPercent)
	assert.Equal(t, 250.0, config.Refill.AbsoluteLitres)
	assert.Equal(t, "Europe/London", config.Location.Loc.String())
	assert.Equal(t, 60, config.Monitor.ScanIntervalSecs)

	assert.Equal(t, 1, config.Anomaly.NightWindow.Start.Hour)
	assert.Equal(t, 30, config.Anomaly.NightWindow.Start.Minute)
	assert.Equal(t, 4, config.Anomaly.NightWindow.End.Hour)
	assert.Equal(t, "Europe/London", config.Anomaly.NightWindow.Start.Location.String())
}

func TestReadRejectsBadValues(t *testing.T) {

	type subTest struct {
		name    string
		yamlStr string
	}

	subTests := []subTest{
		{"BadTimezone", "location: Mars/OlympusMons"},
		{"BadClockTime", "anomaly:\n  nightWindow:\n    start: \"25:00\"\n    end: \"05:00\""},
		{"NightWindowCrossesMidnight", "anomaly:\n  nightWindow:\n    start: \"22:00\"\n    end: \"05:00\""},
		{"CriticalAboveLow", "analysis:\n  lowLevelPercent: 10\n  criticalLevelPercent: 60"},
		{"NegativeCeiling", "consumption:\n  maxDailyLitres: -5"},
		{"MinReadingsTooSmall", "analysis:\n  minReadings: 1"},
	}
	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			path := writeConfig(t, subTest.yamlStr)
			_, err := Read(path)
			if err == nil {
				t.Errorf("Expected an error, got none")
			}
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
