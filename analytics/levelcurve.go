package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/fueltrace/tankmonitor/cartesian"
	"github.com/fueltrace/tankmonitor/telemetry"
)

// LevelChannel selects which level channel of a reading to work with.
type LevelChannel int

const (
	ChannelLitres LevelChannel = iota
	ChannelPercent
)

// LevelPoint is one point of a resampled level series.
type LevelPoint struct {
	Time  time.Time
	Level float64
}

// ResampleLevels converts irregular readings into an evenly spaced level series by
// linear interpolation, suitable for gap-free charting. Readings missing the chosen
// channel are skipped; nil is returned when fewer than 2 readings carry it, or when
// the step is not positive.
//
// The readings must be sorted ascending by time (see telemetry.Normalize).
func ResampleLevels(readings []telemetry.Reading, step time.Duration, channel LevelChannel) []LevelPoint {
	if step <= 0 {
		return nil
	}

	curve := cartesian.Curve{}
	var start time.Time
	for _, reading := range readings {
		level := channelLevel(reading, channel)
		if level == nil {
			continue
		}
		if start.IsZero() {
			start = reading.Time
		}
		curve.Points = append(curve.Points, cartesian.Point{
			X: reading.Time.Sub(start).Hours(),
			Y: *level,
		})
	}

	if len(curve.Points) < 2 {
		return nil
	}

	end := curve.Points[len(curve.Points)-1].X
	stepHours := step.Hours()

	var points []LevelPoint
	for i := 0; ; i++ {
		x := float64(i) * stepHours
		if x > end {
			break
		}
		y := curve.ValueAt(x)
		if math.IsNaN(y) {
			continue
		}
		points = append(points, LevelPoint{
			Time:  start.Add(time.Duration(x * float64(time.Hour))),
			Level: y,
		})
	}
	return points
}

func channelLevel(reading telemetry.Reading, channel LevelChannel) *float64 {
	switch channel {
	case ChannelLitres:
		return reading.LevelLitres
	case ChannelPercent:
		return reading.LevelPercent
	default:
		panic(fmt.Sprintf("Unknown level channel: %d", channel))
	}
}
