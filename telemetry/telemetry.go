package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Reading holds one validated telemetry sample pulled from a tank monitoring device.
// The numeric channels are pointers because devices routinely omit or garble individual
// fields: nil means 'not reported' and is excluded from downstream calculations, it is
// never coerced to zero.
type Reading struct {
	Time           time.Time
	DeviceID       uuid.UUID
	LevelPercent   *float64 // fill level in the range 0-100
	LevelLitres    *float64
	BatteryVoltage *float64
	Temperature    *float64
	Online         bool
}

// Device holds a tank device registry entry as reported by the backend.
type Device struct {
	ID                  uuid.UUID
	Name                string
	CurrentLevelPercent *float64
	CapacityHintLitres  *float64
	LastSeen            time.Time

	// VendorAssetID is the device's identity in the vendor's cloud, empty when the
	// device was never linked to one.
	VendorAssetID string
}
