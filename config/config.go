package config

import (
	"fmt"
	"os"

	timeutils "github.com/fueltrace/tankmonitor/time_utils"
	"gopkg.in/yaml.v3"
)

// AnalysisConfig holds the window parameters shared by the per-device analytics.
type AnalysisConfig struct {
	// How many days of readings to analyse per device. Default 30.
	LookbackDays int `yaml:"lookbackDays"`
	// Devices with fewer readings than this return an insufficient-data result. Default 5.
	MinReadings int `yaml:"minReadings"`
	// The percentage change between the first and second half of the consumption series
	// required to label the trend as increasing or decreasing. Default 10.
	TrendChangePercent float64 `yaml:"trendChangePercent"`
	// Fill percentage below which a device counts as 'low'. Default 35.
	LowLevelPercent float64 `yaml:"lowLevelPercent"`
	// Fill percentage below which a device counts as 'critical', also the baseline for
	// the days-to-critical forecast. Default 20.
	CriticalLevelPercent float64 `yaml:"criticalLevelPercent"`
}

// RefillConfig holds the thresholds used to classify a level rise as a refill event.
// These are deliberately kept in one place: every detection site must take them from
// here rather than carrying its own copies.
type RefillConfig struct {
	// A rise of more than this many litres is always a refill. Default 100.
	AbsoluteLitres float64 `yaml:"absoluteLitres"`
	// A rise of more than this percentage of the previous level is a refill when it is
	// also larger than RelativeMinLitres. Default 20.
	RelativePercent float64 `yaml:"relativePercent"`
	// The minimum rise in litres for the relative rule to apply. Default 50.
	RelativeMinLitres float64 `yaml:"relativeMinLitres"`
	// A rise of more than this many percentage points is a refill for readings that
	// carry no litres channel. Default 20.
	PercentRise float64 `yaml:"percentRise"`
}

// ConsumptionConfig holds the plausibility ceilings and windows for the consumption
// calculator.
type ConsumptionConfig struct {
	// Drops larger than this many litres between consecutive readings are discarded as
	// sensor glitches rather than counted as consumption. Default 15000.
	MaxDailyLitres float64 `yaml:"maxDailyLitres"`
	// As MaxDailyLitres but for the percent channel. Default 100.
	MaxDailyPercent float64 `yaml:"maxDailyPercent"`
	// The trailing window for the rolling consumption averages. Default 7.
	RollingWindowDays int `yaml:"rollingWindowDays"`
}

// AnomalyConfig holds the thresholds for the independent anomaly flags.
type AnomalyConfig struct {
	// The latest consumption sample is 'unusual' when it deviates from the mean of the
	// earlier samples by more than this many standard deviations. Default 2.
	StdDevMultiplier float64 `yaml:"stdDevMultiplier"`
	// Minimum consumption samples before the unusual-consumption check runs. Default 5.
	MinSamples int `yaml:"minSamples"`
	// The overnight window used by the leak check. Default 00:00-05:00 in the
	// configured location.
	NightWindow timeutils.ClockTimePeriod `yaml:"nightWindow"`
	// Litres consumed within the night window above which a night counts towards the
	// leak flag. Default 40.
	NightFloorLitres float64 `yaml:"nightFloorLitres"`
	// Distinct nights over the floor required to raise the leak flag. Default 2.
	MinNights int `yaml:"minNights"`
	// Hours since the last reading after which a device counts as stale. Default 25,
	// which gives hourly-reporting devices an hour of slack.
	StalenessHours float64 `yaml:"stalenessHours"`
	// Faulty rows (system errors plus out-of-range values) within the window required
	// to raise the sensor drift flag. Default 3.
	FaultCount int `yaml:"faultCount"`
}

type SupabaseConfig struct {
	Url string `yaml:"url"`
	// key is specified via env var
	Schema string `yaml:"schema"`
}

// AgbotConfig holds the connection details for the device vendor's cloud API.
type AgbotConfig struct {
	Url   string `yaml:"url"`
	Email string `yaml:"email"`
	// password is specified via env var
	PollIntervalSecs int `yaml:"pollIntervalSecs"`
	// How old the cached auth token may grow before re-authenticating. Default 30.
	TokenMaxAgeMins int `yaml:"tokenMaxAgeMins"`
}

// CacheConfig holds the settings for the local results cache.
type CacheConfig struct {
	// Path of the SQLite database file. Default "tankmonitor_cache.db".
	Path string `yaml:"path"`
	// How long cached readings stay fresh. Default 600.
	ReadingsTTLSecs int `yaml:"readingsTTLSecs"`
	// How long cached analytics snapshots stay fresh. Default 600.
	AnalyticsTTLSecs int `yaml:"analyticsTTLSecs"`
}

type MonitorConfig struct {
	// How often the fleet is scanned. Default 300.
	ScanIntervalSecs int `yaml:"scanIntervalSecs"`
}

type Config struct {
	// The timezone used for day bucketing and the night window. Default UTC.
	Location    Location          `yaml:"location"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Refill      RefillConfig      `yaml:"refill"`
	Consumption ConsumptionConfig `yaml:"consumption"`
	Anomaly     AnomalyConfig     `yaml:"anomaly"`
	Supabase    SupabaseConfig    `yaml:"supabase"`
	Agbot       AgbotConfig       `yaml:"agbot"`
	Cache       CacheConfig       `yaml:"cache"`
	Monitor     MonitorConfig     `yaml:"monitor"`
}

func Read(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(content, &config)
	if err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	config.applyDefaults()

	err = config.validate()
	if err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// applyDefaults fills in the documented default for every threshold that the file
// leaves at its zero value.
func (c *Config) applyDefaults() {
	if c.Location.Loc == nil {
		c.Location.Loc = defaultLocation()
	}

	if c.Analysis.LookbackDays == 0 {
		c.Analysis.LookbackDays = 30
	}
	if c.Analysis.MinReadings == 0 {
		c.Analysis.MinReadings = 5
	}
	if c.Analysis.TrendChangePercent == 0 {
		c.Analysis.TrendChangePercent = 10
	}
	if c.Analysis.LowLevelPercent == 0 {
		c.Analysis.LowLevelPercent = 35
	}
	if c.Analysis.CriticalLevelPercent == 0 {
		c.Analysis.CriticalLevelPercent = 20
	}

	if c.Refill.AbsoluteLitres == 0 {
		c.Refill.AbsoluteLitres = 100
	}
	if c.Refill.RelativePercent == 0 {
		c.Refill.RelativePercent = 20
	}
	if c.Refill.RelativeMinLitres == 0 {
		c.Refill.RelativeMinLitres = 50
	}
	if c.Refill.PercentRise == 0 {
		c.Refill.PercentRise = 20
	}

	if c.Consumption.MaxDailyLitres == 0 {
		c.Consumption.MaxDailyLitres = 15000
	}
	if c.Consumption.MaxDailyPercent == 0 {
		c.Consumption.MaxDailyPercent = 100
	}
	if c.Consumption.RollingWindowDays == 0 {
		c.Consumption.RollingWindowDays = 7
	}

	if c.Anomaly.StdDevMultiplier == 0 {
		c.Anomaly.StdDevMultiplier = 2
	}
	if c.Anomaly.MinSamples == 0 {
		c.Anomaly.MinSamples = 5
	}
	// A zero-length window is meaningless, so it doubles as the 'not configured' marker
	if c.Anomaly.NightWindow.Start == c.Anomaly.NightWindow.End {
		c.Anomaly.NightWindow = timeutils.ClockTimePeriod{
			Start: timeutils.ClockTime{Hour: 0, Minute: 0},
			End:   timeutils.ClockTime{Hour: 5, Minute: 0},
		}
	}
	if c.Anomaly.NightFloorLitres == 0 {
		c.Anomaly.NightFloorLitres = 40
	}
	if c.Anomaly.MinNights == 0 {
		c.Anomaly.MinNights = 2
	}
	if c.Anomaly.StalenessHours == 0 {
		c.Anomaly.StalenessHours = 25
	}
	if c.Anomaly.FaultCount == 0 {
		c.Anomaly.FaultCount = 3
	}

	if c.Agbot.PollIntervalSecs == 0 {
		c.Agbot.PollIntervalSecs = 300
	}
	if c.Agbot.TokenMaxAgeMins == 0 {
		c.Agbot.TokenMaxAgeMins = 30
	}

	if c.Cache.Path == "" {
		c.Cache.Path = "tankmonitor_cache.db"
	}
	if c.Cache.ReadingsTTLSecs == 0 {
		c.Cache.ReadingsTTLSecs = 600
	}
	if c.Cache.AnalyticsTTLSecs == 0 {
		c.Cache.AnalyticsTTLSecs = 600
	}

	if c.Monitor.ScanIntervalSecs == 0 {
		c.Monitor.ScanIntervalSecs = 300
	}

	// The night window is configured as bare clock times, the timezone comes from the
	// top-level location.
	c.Anomaly.NightWindow = c.Anomaly.NightWindow.WithLocation(c.Location.Loc)
}

func (c *Config) validate() error {
	if c.Analysis.LookbackDays < 0 {
		return fmt.Errorf("lookbackDays must be positive, got %d", c.Analysis.LookbackDays)
	}
	if c.Analysis.MinReadings < 2 {
		return fmt.Errorf("minReadings must be at least 2, got %d", c.Analysis.MinReadings)
	}
	if c.Analysis.CriticalLevelPercent < 0 || c.Analysis.CriticalLevelPercent > 100 {
		return fmt.Errorf("criticalLevelPercent must be in 0-100, got %f", c.Analysis.CriticalLevelPercent)
	}
	if c.Analysis.LowLevelPercent < c.Analysis.CriticalLevelPercent {
		return fmt.Errorf("lowLevelPercent (%f) must not be below criticalLevelPercent (%f)",
			c.Analysis.LowLevelPercent, c.Analysis.CriticalLevelPercent)
	}
	if c.Refill.AbsoluteLitres < 0 || c.Refill.RelativeMinLitres < 0 {
		return fmt.Errorf("refill thresholds must be positive")
	}
	if c.Consumption.MaxDailyLitres < 0 {
		return fmt.Errorf("maxDailyLitres must be positive, got %f", c.Consumption.MaxDailyLitres)
	}
	if c.Consumption.RollingWindowDays < 1 {
		return fmt.Errorf("rollingWindowDays must be at least 1, got %d", c.Consumption.RollingWindowDays)
	}
	if c.Anomaly.StalenessHours < 0 {
		return fmt.Errorf("stalenessHours must be positive, got %f", c.Anomaly.StalenessHours)
	}
	nightStart := c.Anomaly.NightWindow.Start
	nightEnd := c.Anomaly.NightWindow.End
	if secondsIntoDay(nightEnd) <= secondsIntoDay(nightStart) {
		return fmt.Errorf("nightWindow must end after it starts and may not cross midnight")
	}
	if c.Monitor.ScanIntervalSecs < 1 {
		return fmt.Errorf("scanIntervalSecs must be at least 1, got %d", c.Monitor.ScanIntervalSecs)
	}
	return nil
}

func secondsIntoDay(ct timeutils.ClockTime) int {
	return ct.Hour*3600 + ct.Minute*60 + ct.Second
}
