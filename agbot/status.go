package agbot

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DeviceStatus is the vendor's live view of one asset. The metric fields are pointers
// because the vendor only reports the sensors an asset actually carries.
type DeviceStatus struct {
	AssetID      string
	LastReported time.Time

	LevelPercent      *float64 `mapstructure:"level_percent"`
	BatteryVoltage    *float64 `mapstructure:"battery_voltage"`
	Temperature       *float64 `mapstructure:"temperature"`
	SignalStrengthDbm *float64 `mapstructure:"signal_strength_dbm"`
}

// statusResponse is the JSON body that is sent by the vendor for the status endpoints.
// The metrics come as a loosely typed map whose keys vary by asset model.
type statusResponse struct {
	AssetID      string                 `json:"asset_id"`
	LastReported time.Time              `json:"last_reported"`
	Metrics      map[string]interface{} `json:"metrics"`
}

// calibrationRequest is the JSON body we post to the vendor's calibration endpoint.
type calibrationRequest struct {
	CapacityLitres float64 `json:"capacity_litres"`
}

// statusFromResponse converts the vendor's loosely typed status into a concrete
// `DeviceStatus` instance.
func statusFromResponse(response statusResponse) (DeviceStatus, error) {

	status := DeviceStatus{
		AssetID:      response.AssetID,
		LastReported: response.LastReported,
	}

	err := mapstructure.Decode(response.Metrics, &status)
	if err != nil {
		return DeviceStatus{}, fmt.Errorf("decode metric map: %w", err)
	}

	return status, nil
}
