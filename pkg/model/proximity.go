package model

import "time"

// ProximityEvent is emitted by the geofence evaluator when a vehicle is close
// to a stop. Transient, produced per evaluator tick and consumed immediately
// by the trigger engine.
type ProximityEvent struct {
	VehicleID string
	StopRef   string

	DistanceMeters float64
	ETAMinutes     int

	Kind ProximityEventKind

	Confidence float64

	Timestamp time.Time
}

type ProximityEventKind string

const (
	ProximityEventKindEntering ProximityEventKind = "entering"
	ProximityEventKindWithin   ProximityEventKind = "within"
)
