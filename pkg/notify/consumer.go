package notify

import (
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/rs/zerolog/log"
)

// NotifyBatchConsumer drains the notify queue. The in-repo consumer only logs
// what it would deliver; real deployments point carrier adapters at the same
// queue.
type NotifyBatchConsumer struct {
}

func NewNotifyBatchConsumer() *NotifyBatchConsumer {
	return &NotifyBatchConsumer{}
}

func (c *NotifyBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		var message model.NotificationMessage
		if err := json.Unmarshal([]byte(payload), &message); err != nil {
			log.Warn().Err(err).Msg("Failed to decode notification message")
			continue
		}

		log.Info().
			Str("channel", string(message.Channel)).
			Str("recipient", message.Recipient).
			Str("subscription", message.SubscriptionRef).
			Str("body", message.Body).
			Msg("Notification ready for delivery")
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to consume from notify queue")
		}
	}
}
