package config

import (
	"fmt"
	"time"
)

// Location wraps a time.Location so that it can be given in the configuration file as
// an IANA timezone name, e.g. "Europe/London". Day bucketing needs a timezone: the
// instant "2024-04-06T23:30:00Z" is a Friday in UTC but a Saturday in BST.
type Location struct {
	Loc *time.Location
}

// UnmarshalYAML defines how a string is converted into a Location.
func (l *Location) UnmarshalYAML(unmarshal func(interface{}) error) error {

	var str string
	err := unmarshal(&str)
	if err != nil {
		return fmt.Errorf("to string: %w", err)
	}

	location, err := time.LoadLocation(str)
	if err != nil {
		return err
	}

	l.Loc = location

	return nil
}

func defaultLocation() *time.Location {
	return time.UTC
}
