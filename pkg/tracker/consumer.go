package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/arrivo-transit/arrivo/pkg/metrics"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/arrivo-transit/arrivo/pkg/redis_client"
	"github.com/rs/zerolog/log"
)

const numConsumers = 5
const batchSize = 200

// StartConsumers attaches the batch consumers that drain the locations queue
// into the smoother. Accepted samples are republished on the events queue for
// the broadcast hub.
func StartConsumers(smoother *Smoother) {
	log.Info().Msg("Starting location consumers")

	queue, err := redis_client.QueueConnection.OpenQueue(redis_client.QueueLocations)
	if err != nil {
		panic(err)
	}
	if err := queue.StartConsuming(numConsumers*batchSize, 1*time.Second); err != nil {
		panic(err)
	}

	eventsQueue, err := redis_client.QueueConnection.OpenQueue(redis_client.QueueEvents)
	if err != nil {
		panic(err)
	}

	for i := 0; i < numConsumers; i++ {
		id := i
		go func() {
			log.Info().Msgf("Starting location consumer %d", id)

			if _, err := queue.AddBatchConsumer(fmt.Sprintf("locations-queue-%d", id), batchSize, 2*time.Second, NewBatchConsumer(id, smoother, eventsQueue)); err != nil {
				panic(err)
			}
		}()
	}
}

type BatchConsumer struct {
	id int

	smoother    *Smoother
	eventsQueue rmq.Queue
}

func NewBatchConsumer(id int, smoother *Smoother, eventsQueue rmq.Queue) *BatchConsumer {
	return &BatchConsumer{id: id, smoother: smoother, eventsQueue: eventsQueue}
}

func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		var sample model.VehiclePositionSample
		if err := json.Unmarshal([]byte(payload), &sample); err != nil {
			log.Warn().Err(err).Msg("Failed to decode position sample")
			metrics.SamplesRejected.WithLabelValues("malformed").Inc()
			continue
		}

		smoothed, err := consumer.smoother.Ingest(sample)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidCoordinate):
				log.Warn().
					Str("vehicle", sample.VehicleID).
					Float64("latitude", sample.Latitude).
					Float64("longitude", sample.Longitude).
					Msg("Rejected out of range coordinate")
				metrics.SamplesRejected.WithLabelValues("invalid_coordinate").Inc()
			case errors.Is(err, ErrStaleSample):
				log.Debug().Str("vehicle", sample.VehicleID).Msg("Skipped stale sample")
				metrics.SamplesRejected.WithLabelValues("stale_timestamp").Inc()
			default:
				log.Error().Err(err).Str("vehicle", sample.VehicleID).Msg("Failed to ingest sample")
				metrics.SamplesRejected.WithLabelValues("error").Inc()
			}
			continue
		}

		metrics.SamplesIngested.Inc()

		envelopeBytes, _ := json.Marshal(model.NewEnvelope(model.EnvelopeTypeLocationUpdate, smoothed))
		if err := consumer.eventsQueue.PublishBytes(envelopeBytes); err != nil {
			log.Error().Err(err).Msg("Failed to publish location event")
		}
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to ack location batch")
		}
	}
}
