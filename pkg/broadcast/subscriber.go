package broadcast

import (
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/rs/zerolog/log"
)

// EventBatchConsumer bridges the events queue onto the hub's bounded inbox.
// Queue mechanics stay here; the hub only ever drains envelopes.
type EventBatchConsumer struct {
	inbox chan<- model.Envelope
}

func NewEventBatchConsumer(inbox chan<- model.Envelope) *EventBatchConsumer {
	return &EventBatchConsumer{inbox: inbox}
}

func (c *EventBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		var envelope model.Envelope
		if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
			log.Warn().Err(err).Msg("Failed to decode event")
			continue
		}

		// location payloads decode as map[string]any; retype them so
		// interest filtering can see the vehicle id
		if envelope.Type == model.EnvelopeTypeLocationUpdate {
			if location, err := retypeLocation(envelope.Data); err == nil {
				envelope.Data = location
			}
		}

		select {
		case c.inbox <- envelope:
		default:
			// inbox full - drop rather than block the queue consumer, the
			// next location update supersedes this one anyway
			log.Warn().Str("type", string(envelope.Type)).Msg("Broadcast inbox full, dropping event")
		}
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to ack event batch")
		}
	}
}

func retypeLocation(data any) (model.SmoothedLocation, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return model.SmoothedLocation{}, err
	}

	var location model.SmoothedLocation
	if err := json.Unmarshal(payload, &location); err != nil {
		return model.SmoothedLocation{}, err
	}

	return location, nil
}
