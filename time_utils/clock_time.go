package timeutils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime represents a time of day in the given locale, without a date.
type ClockTime struct {
	Hour     int
	Minute   int
	Second   int
	Location *time.Location
}

// OnDate returns a time with the given clock time on the given date
func (c *ClockTime) OnDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, c.Hour, c.Minute, c.Second, 0, c.Location)
}

// UnmarshalYAML defines how a "HH:MM" or "HH:MM:SS" string is converted into a ClockTime.
// The Location is not part of the string representation - it is applied afterwards by the
// configuration layer, which holds one timezone for the whole analysis.
func (c *ClockTime) UnmarshalYAML(unmarshal func(interface{}) error) error {

	var str string
	err := unmarshal(&str)
	if err != nil {
		return fmt.Errorf("to string: %w", err)
	}

	elements := strings.Split(str, ":")
	if len(elements) != 2 && len(elements) != 3 {
		return fmt.Errorf("clock time '%s' expected 2 or 3 elements, found %d", str, len(elements))
	}

	hour, err := strconv.Atoi(elements[0])
	if err != nil {
		return fmt.Errorf("parse hour: %w", err)
	}
	minute, err := strconv.Atoi(elements[1])
	if err != nil {
		return fmt.Errorf("parse minute: %w", err)
	}
	second := 0
	if len(elements) == 3 {
		second, err = strconv.Atoi(elements[2])
		if err != nil {
			return fmt.Errorf("parse second: %w", err)
		}
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return fmt.Errorf("clock time '%s' is out of range", str)
	}

	c.Hour = hour
	c.Minute = minute
	c.Second = second

	return nil
}
