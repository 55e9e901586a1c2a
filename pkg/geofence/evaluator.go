package geofence

import (
	"context"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/config"
	"github.com/arrivo-transit/arrivo/pkg/geomath"
	"github.com/arrivo-transit/arrivo/pkg/metrics"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/rs/zerolog/log"
)

// LocationSource is the smoother's read side.
type LocationSource interface {
	Active(now time.Time) []model.SmoothedLocation
}

// StopSource is the reference-data snapshot's read side.
type StopSource interface {
	Stops() []*model.Stop
}

// EventHandler consumes the proximity events of a tick.
type EventHandler interface {
	HandleProximityEvent(event model.ProximityEvent)
}

// Evaluator crosses active vehicle locations with the stop snapshot on every
// tick and emits entering/within proximity events.
type Evaluator struct {
	locations LocationSource
	stops     StopSource
	handler   EventHandler

	config config.GeofenceConfig
}

func NewEvaluator(cfg config.GeofenceConfig, locations LocationSource, stops StopSource, handler EventHandler) *Evaluator {
	return &Evaluator{
		locations: locations,
		stops:     stops,
		handler:   handler,
		config:    cfg,
	}
}

// Run ticks until the context is cancelled. An in-flight tick always finishes,
// cancellation is only observed between ticks.
func (e *Evaluator) Run(ctx context.Context) {
	log.Info().Dur("interval", e.config.TickInterval).Msg("Starting geofence evaluator")

	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Geofence evaluator stopped")
			return
		case <-ticker.C:
			e.Evaluate(time.Now())
		}
	}
}

// Evaluate runs a single tick. Events for different vehicles carry no
// ordering guarantee.
func (e *Evaluator) Evaluate(now time.Time) []model.ProximityEvent {
	defer metrics.ObserveTick(now)

	stops := e.stops.Stops()
	vehicles := e.locations.Active(now)

	var events []model.ProximityEvent

	for _, vehicle := range vehicles {
		for _, stop := range stops {
			distance := geomath.Distance(vehicle.Latitude, vehicle.Longitude, stop.Latitude, stop.Longitude)
			if distance > e.config.BoundingRadiusMeters {
				continue
			}

			event, ok := e.classify(vehicle, stop, distance, now)
			if !ok {
				continue
			}

			events = append(events, event)
			metrics.ProximityEvents.WithLabelValues(string(event.Kind)).Inc()

			if e.handler != nil {
				e.handler.HandleProximityEvent(event)
			}
		}
	}

	return events
}

func (e *Evaluator) classify(vehicle model.SmoothedLocation, stop *model.Stop, distance float64, now time.Time) (model.ProximityEvent, bool) {
	var kind model.ProximityEventKind

	switch {
	case distance <= e.config.InnerRadiusMeters:
		kind = model.ProximityEventKindWithin
	case distance <= e.config.TriggerRadiusMeters &&
		geomath.IsApproaching(vehicle.Latitude, vehicle.Longitude, vehicle.BearingDeg, stop.Latitude, stop.Longitude, e.config.ApproachToleranceDeg):
		kind = model.ProximityEventKindEntering
	default:
		return model.ProximityEvent{}, false
	}

	return model.ProximityEvent{
		VehicleID:      vehicle.VehicleID,
		StopRef:        stop.PrimaryIdentifier,
		DistanceMeters: distance,
		ETAMinutes:     geomath.ETAMinutes(distance, vehicle.SpeedKmh, e.config.DefaultSpeedKmh),
		Kind:           kind,
		Confidence:     e.confidence(distance, vehicle.Confidence),
		Timestamp:      now,
	}, true
}

// confidence starts from a base of 0.6 and earns up to 0.3 more as the
// distance closes, scaled down for interpolated or stale vehicle positions.
func (e *Evaluator) confidence(distance float64, locationConfidence float64) float64 {
	proximity := 1 - distance/e.config.BoundingRadiusMeters
	if proximity < 0 {
		proximity = 0
	}

	bonus := 0.3 * proximity * locationConfidence

	confidence := 0.6 + bonus
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	return confidence
}
