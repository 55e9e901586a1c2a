package geofence

import (
	"testing"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/config"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLocations []model.SmoothedLocation

func (s staticLocations) Active(now time.Time) []model.SmoothedLocation {
	return s
}

type staticStops []*model.Stop

func (s staticStops) Stops() []*model.Stop {
	return s
}

type recordingHandler struct {
	events []model.ProximityEvent
}

func (h *recordingHandler) HandleProximityEvent(event model.ProximityEvent) {
	h.events = append(h.events, event)
}

func vehicle(id string, lat float64, lon float64, bearing float64, confidence float64) model.SmoothedLocation {
	return model.SmoothedLocation{
		VehicleID:  id,
		Latitude:   lat,
		Longitude:  lon,
		SpeedKmh:   20,
		BearingDeg: bearing,
		Timestamp:  time.Now(),
		Confidence: confidence,
	}
}

func stop(id string, lat float64, lon float64) *model.Stop {
	return &model.Stop{
		PrimaryIdentifier: id,
		Name:              id,
		Latitude:          lat,
		Longitude:         lon,
	}
}

func TestEvaluateWithin(t *testing.T) {
	handler := &recordingHandler{}
	evaluator := NewEvaluator(
		config.Defaults().Geofence,
		// roughly 100m east of the stop
		staticLocations{vehicle("bus-1", 12.9716, 77.5955, 270, 1.0)},
		staticStops{stop("stop-a", 12.9716, 77.5946)},
		handler,
	)

	events := evaluator.Evaluate(time.Now())

	require.Len(t, events, 1)
	assert.Equal(t, model.ProximityEventKindWithin, events[0].Kind)
	assert.Equal(t, "bus-1", events[0].VehicleID)
	assert.Equal(t, "stop-a", events[0].StopRef)
	assert.Less(t, events[0].DistanceMeters, 150.0)
	assert.Equal(t, events, handler.events)
}

func TestEvaluateEnteringRequiresApproach(t *testing.T) {
	stops := staticStops{stop("stop-a", 12.9716, 77.5946)}

	// roughly 220m east, heading west towards the stop
	approaching := NewEvaluator(config.Defaults().Geofence,
		staticLocations{vehicle("bus-1", 12.9716, 77.5966, 270, 1.0)}, stops, nil)
	events := approaching.Evaluate(time.Now())
	require.Len(t, events, 1)
	assert.Equal(t, model.ProximityEventKindEntering, events[0].Kind)

	// same position, heading directly away
	departing := NewEvaluator(config.Defaults().Geofence,
		staticLocations{vehicle("bus-1", 12.9716, 77.5966, 90, 1.0)}, stops, nil)
	assert.Empty(t, departing.Evaluate(time.Now()))
}

func TestEvaluateBoundingRadius(t *testing.T) {
	evaluator := NewEvaluator(
		config.Defaults().Geofence,
		// several km away
		staticLocations{vehicle("bus-1", 13.0358, 77.5970, 180, 1.0)},
		staticStops{stop("stop-a", 12.9716, 77.5946)},
		nil,
	)

	assert.Empty(t, evaluator.Evaluate(time.Now()))
}

func TestEvaluateETAAlwaysPositive(t *testing.T) {
	location := vehicle("bus-1", 12.9716, 77.5950, 270, 1.0)
	location.SpeedKmh = 0

	evaluator := NewEvaluator(
		config.Defaults().Geofence,
		staticLocations{location},
		staticStops{stop("stop-a", 12.9716, 77.5946)},
		nil,
	)

	events := evaluator.Evaluate(time.Now())
	require.Len(t, events, 1)
	assert.GreaterOrEqual(t, events[0].ETAMinutes, 1)
}

func TestConfidenceScaling(t *testing.T) {
	stops := staticStops{stop("stop-a", 12.9716, 77.5946)}

	confident := NewEvaluator(config.Defaults().Geofence,
		staticLocations{vehicle("bus-1", 12.9716, 77.5950, 270, 1.0)}, stops, nil)
	interpolated := NewEvaluator(config.Defaults().Geofence,
		staticLocations{vehicle("bus-1", 12.9716, 77.5950, 270, 0.3)}, stops, nil)

	confidentEvents := confident.Evaluate(time.Now())
	interpolatedEvents := interpolated.Evaluate(time.Now())
	require.Len(t, confidentEvents, 1)
	require.Len(t, interpolatedEvents, 1)

	assert.Greater(t, confidentEvents[0].Confidence, interpolatedEvents[0].Confidence)

	for _, event := range append(confidentEvents, interpolatedEvents...) {
		assert.GreaterOrEqual(t, event.Confidence, 0.0)
		assert.LessOrEqual(t, event.Confidence, 1.0)
	}
}
