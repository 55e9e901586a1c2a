package trigger

import (
	"testing"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/config"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	stops         map[string]*model.Stop
	subscriptions map[string][]*model.Subscription
}

func (s *staticSource) Stop(stopRef string) *model.Stop {
	return s.stops[stopRef]
}

func (s *staticSource) ActiveSubscriptionsForStop(stopRef string) []*model.Subscription {
	var active []*model.Subscription
	for _, subscription := range s.subscriptions[stopRef] {
		if subscription.Active {
			active = append(active, subscription)
		}
	}

	return active
}

type recordingHandler struct {
	decisions []Decision
}

func (h *recordingHandler) HandleDecision(decision Decision) {
	h.decisions = append(h.decisions, decision)
}

func testSource() *staticSource {
	stop := &model.Stop{PrimaryIdentifier: "stop-a", Name: "Majestic"}
	subscription := &model.Subscription{
		PrimaryIdentifier:   "sub-1",
		Recipient:           "+919900011111",
		Channel:             model.NotificationChannelSMS,
		Language:            "en",
		StopRef:             "stop-a",
		ETAThresholdMinutes: 5,
		Active:              true,
	}

	return &staticSource{
		stops:         map[string]*model.Stop{"stop-a": stop},
		subscriptions: map[string][]*model.Subscription{"stop-a": {subscription}},
	}
}

func event(etaMinutes int, confidence float64, timestamp time.Time) model.ProximityEvent {
	return model.ProximityEvent{
		VehicleID:      "bus-1",
		StopRef:        "stop-a",
		DistanceMeters: 200,
		ETAMinutes:     etaMinutes,
		Kind:           model.ProximityEventKindEntering,
		Confidence:     confidence,
		Timestamp:      timestamp,
	}
}

func TestFiresAtThreshold(t *testing.T) {
	handler := &recordingHandler{}
	engine := NewEngine(config.Defaults().Trigger, testSource(), handler)

	engine.HandleProximityEvent(event(5, 0.9, time.Now()))

	require.Len(t, handler.decisions, 1)
	assert.Equal(t, "sub-1", handler.decisions[0].Subscription.PrimaryIdentifier)
	assert.Equal(t, "Majestic", handler.decisions[0].Stop.Name)
}

func TestDoesNotFireAboveThreshold(t *testing.T) {
	handler := &recordingHandler{}
	engine := NewEngine(config.Defaults().Trigger, testSource(), handler)

	engine.HandleProximityEvent(event(6, 0.9, time.Now()))

	assert.Empty(t, handler.decisions)
}

func TestDoesNotFireBelowConfidenceFloor(t *testing.T) {
	handler := &recordingHandler{}
	engine := NewEngine(config.Defaults().Trigger, testSource(), handler)

	engine.HandleProximityEvent(event(3, 0.59, time.Now()))

	assert.Empty(t, handler.decisions)
}

func TestCooldownDebounces(t *testing.T) {
	handler := &recordingHandler{}
	engine := NewEngine(config.Defaults().Trigger, testSource(), handler)
	start := time.Now()

	engine.HandleProximityEvent(event(3, 0.9, start))
	engine.HandleProximityEvent(event(3, 0.9, start.Add(30*time.Second)))

	// two events 30s apart inside the 5 minute cool-down fire exactly once
	require.Len(t, handler.decisions, 1)

	// a third event after the cool-down elapses fires again
	engine.HandleProximityEvent(event(3, 0.9, start.Add(6*time.Minute)))
	assert.Len(t, handler.decisions, 2)
}

func TestCooldownIsPerVehicle(t *testing.T) {
	handler := &recordingHandler{}
	engine := NewEngine(config.Defaults().Trigger, testSource(), handler)
	start := time.Now()

	engine.HandleProximityEvent(event(3, 0.9, start))

	other := event(3, 0.9, start.Add(10*time.Second))
	other.VehicleID = "bus-2"
	engine.HandleProximityEvent(other)

	// rate limited per subscriber/vehicle/stop triple, not globally
	assert.Len(t, handler.decisions, 2)
}

func TestUnknownStopDropped(t *testing.T) {
	handler := &recordingHandler{}
	engine := NewEngine(config.Defaults().Trigger, testSource(), handler)

	unknown := event(3, 0.9, time.Now())
	unknown.StopRef = "stop-ghost"
	engine.HandleProximityEvent(unknown)

	assert.Empty(t, handler.decisions)
}

func TestCleanupRemovesExpiredRecords(t *testing.T) {
	handler := &recordingHandler{}
	engine := NewEngine(config.Defaults().Trigger, testSource(), handler)
	start := time.Now()

	engine.HandleProximityEvent(event(3, 0.9, start))
	require.Len(t, handler.decisions, 1)

	removed := engine.Cleanup(start.Add(2 * time.Hour))
	assert.Equal(t, 1, removed)

	// record gone, the next event fires fresh
	engine.HandleProximityEvent(event(3, 0.9, start.Add(2*time.Hour)))
	assert.Len(t, handler.decisions, 2)
}

func TestCleanupKeepsRecentRecords(t *testing.T) {
	engine := NewEngine(config.Defaults().Trigger, testSource(), nil)
	start := time.Now()

	engine.HandleProximityEvent(event(3, 0.9, start))

	assert.Equal(t, 0, engine.Cleanup(start.Add(30*time.Minute)))
}
