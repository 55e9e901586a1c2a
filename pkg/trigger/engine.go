package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/config"
	"github.com/arrivo-transit/arrivo/pkg/metrics"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/rs/zerolog/log"
)

// SubscriptionSource is the reference-data snapshot's read side.
type SubscriptionSource interface {
	Stop(stopRef string) *model.Stop
	ActiveSubscriptionsForStop(stopRef string) []*model.Subscription
}

// Decision is a fired trigger, carrying everything the composer needs.
type Decision struct {
	Event        model.ProximityEvent
	Subscription *model.Subscription
	Stop         *model.Stop
}

// DecisionHandler consumes fired triggers.
type DecisionHandler interface {
	HandleDecision(decision Decision)
}

type recordKey struct {
	SubscriptionRef string
	VehicleID       string
	StopRef         string
}

// Engine matches proximity events against subscriptions and debounces
// repeated firings. The trigger-record map belongs to the engine alone and is
// only ever touched under the mutex, so two concurrent ticks cannot both fire
// inside the cool-down.
type Engine struct {
	mutex   sync.Mutex
	records map[recordKey]time.Time

	subscriptions SubscriptionSource
	handler       DecisionHandler

	config config.TriggerConfig
}

func NewEngine(cfg config.TriggerConfig, subscriptions SubscriptionSource, handler DecisionHandler) *Engine {
	return &Engine{
		records:       map[recordKey]time.Time{},
		subscriptions: subscriptions,
		handler:       handler,
		config:        cfg,
	}
}

// HandleProximityEvent evaluates one event against every active subscription
// on its stop. A subscription fires iff the ETA is inside its threshold, the
// event confidence clears the floor and the (subscription, vehicle, stop)
// triple is outside its cool-down.
func (e *Engine) HandleProximityEvent(event model.ProximityEvent) {
	stop := e.subscriptions.Stop(event.StopRef)
	if stop == nil {
		log.Warn().Str("stop", event.StopRef).Msg("Dropped event for unknown stop")
		return
	}

	if event.Confidence < e.config.ConfidenceFloor {
		metrics.TriggersSuppressed.WithLabelValues("confidence").Inc()
		return
	}

	for _, subscription := range e.subscriptions.ActiveSubscriptionsForStop(event.StopRef) {
		if event.ETAMinutes > subscription.ETAThresholdMinutes {
			metrics.TriggersSuppressed.WithLabelValues("eta").Inc()
			continue
		}

		if !e.tryRecord(subscription.PrimaryIdentifier, event.VehicleID, event.StopRef, event.Timestamp) {
			metrics.TriggersSuppressed.WithLabelValues("cooldown").Inc()
			continue
		}

		metrics.TriggersFired.Inc()

		log.Info().
			Str("subscription", subscription.PrimaryIdentifier).
			Str("vehicle", event.VehicleID).
			Str("stop", event.StopRef).
			Int("eta", event.ETAMinutes).
			Msg("Trigger fired")

		if e.handler != nil {
			e.handler.HandleDecision(Decision{
				Event:        event,
				Subscription: subscription,
				Stop:         stop,
			})
		}
	}
}

// tryRecord claims the triple for this firing. Check and write happen under
// one lock acquisition.
func (e *Engine) tryRecord(subscriptionRef string, vehicleID string, stopRef string, now time.Time) bool {
	key := recordKey{
		SubscriptionRef: subscriptionRef,
		VehicleID:       vehicleID,
		StopRef:         stopRef,
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if lastTriggered, exists := e.records[key]; exists && now.Sub(lastTriggered) < e.config.CooldownWindow {
		return false
	}

	e.records[key] = now

	return true
}

// Cleanup drops trigger records older than the retention window.
func (e *Engine) Cleanup(now time.Time) int {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	removed := 0
	for key, lastTriggered := range e.records {
		if now.Sub(lastTriggered) > e.config.RetentionWindow {
			delete(e.records, key)
			removed++
		}
	}

	return removed
}

// RunCleaner runs Cleanup on an interval until the context is cancelled.
func (e *Engine) RunCleaner(ctx context.Context) {
	ticker := time.NewTicker(e.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := e.Cleanup(time.Now()); removed != 0 {
				log.Info().Int("removed", removed).Msg("Cleaned trigger records")
			}
		}
	}
}
