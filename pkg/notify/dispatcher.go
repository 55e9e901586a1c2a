package notify

import (
	"encoding/json"

	"github.com/arrivo-transit/arrivo/pkg/composer"
	"github.com/arrivo-transit/arrivo/pkg/metrics"
	"github.com/arrivo-transit/arrivo/pkg/redis_client"
	"github.com/arrivo-transit/arrivo/pkg/trigger"
	"github.com/rs/zerolog/log"

	"github.com/adjust/rmq/v5"
)

// Dispatcher turns fired triggers into rendered notification messages and
// hands them to the outbound delivery queue. Carrier retry and backoff belong
// to the delivery adapters consuming that queue.
type Dispatcher struct {
	composer *composer.Composer

	notificationQueue rmq.Queue
}

func NewDispatcher(messageComposer *composer.Composer) (*Dispatcher, error) {
	notificationQueue, err := redis_client.QueueConnection.OpenQueue(redis_client.QueueNotifications)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		composer:          messageComposer,
		notificationQueue: notificationQueue,
	}, nil
}

func (d *Dispatcher) HandleDecision(decision trigger.Decision) {
	message := d.composer.RenderDecision(composer.TriggerDecision{
		VehicleID:       decision.Event.VehicleID,
		StopRef:         decision.Stop.PrimaryIdentifier,
		StopName:        decision.Stop.Name,
		ETAMinutes:      decision.Event.ETAMinutes,
		SubscriptionRef: decision.Subscription.PrimaryIdentifier,
		Recipient:       decision.Subscription.Recipient,
		Channel:         decision.Subscription.Channel,
		Language:        decision.Subscription.Language,
	})

	messageBytes, _ := json.Marshal(message)
	if err := d.notificationQueue.PublishBytes(messageBytes); err != nil {
		log.Error().Err(err).
			Str("subscription", decision.Subscription.PrimaryIdentifier).
			Msg("Failed to queue notification")
		return
	}

	metrics.NotificationsDispatched.WithLabelValues(string(message.Channel)).Inc()
}
