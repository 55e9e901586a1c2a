package model

import (
	"encoding/json"
	"time"
)

// VehiclePositionSample is a single raw reading from the position feed.
// Samples are ephemeral, they are consumed once by the location smoother.
type VehiclePositionSample struct {
	VehicleID string `json:"vehicle_id"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	SpeedKmh   float64 `json:"speed_kmh"`
	BearingDeg float64 `json:"bearing_deg"`

	Timestamp time.Time `json:"timestamp"`
}

// SmoothedLocation is the filtered view of a vehicle maintained by the
// location smoother. At most one exists per vehicle at any time.
type SmoothedLocation struct {
	VehicleID string `json:"vehicle_id"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	SpeedKmh   float64 `json:"speed_kmh"`
	BearingDeg float64 `json:"bearing_deg"`

	Timestamp time.Time `json:"timestamp"`

	// Confidence is 0-1, it decays once the vehicle goes stale
	Confidence   float64 `json:"confidence"`
	Interpolated bool    `json:"interpolated"`
}

func (l SmoothedLocation) MarshalBinary() ([]byte, error) {
	return json.Marshal(l)
}
