package tracker

import (
	"encoding/json"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/arrivo-transit/arrivo/pkg/redis_client"
	"github.com/arrivo-transit/arrivo/pkg/util"
	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const defaultFeedURL = nats.DefaultURL
const feedSubject = "vehicles.>"

// FeedSubscriber bridges the external position feed onto the locations queue.
// Transport mechanics stay here; the consumers only ever see queue payloads.
type FeedSubscriber struct {
	conn *nats.Conn
}

func NewFeedSubscriber() (*FeedSubscriber, error) {
	url := defaultFeedURL

	env := util.GetEnvironmentVariables()
	if env["ARRIVO_FEED_URL"] != "" {
		url = env["ARRIVO_FEED_URL"]
	}

	var conn *nats.Conn

	err := backoff.Retry(func() error {
		var err error
		conn, err = nats.Connect(url,
			nats.Name("arrivo-tracker"),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn().Err(err).Msg("Position feed disconnected")
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Info().Msg("Position feed reconnected")
			}),
		)
		return err
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10))

	if err != nil {
		return nil, err
	}

	return &FeedSubscriber{conn: conn}, nil
}

// Run subscribes to the feed subjects and republishes every decoded sample
// onto the locations queue. Malformed feed payloads are logged and dropped.
func (f *FeedSubscriber) Run() error {
	locationsQueue, err := redis_client.QueueConnection.OpenQueue(redis_client.QueueLocations)
	if err != nil {
		return err
	}

	_, err = f.conn.Subscribe(feedSubject, func(msg *nats.Msg) {
		var sample model.VehiclePositionSample
		if err := json.Unmarshal(msg.Data, &sample); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("Failed to decode feed message")
			return
		}

		if sample.Timestamp.IsZero() {
			sample.Timestamp = time.Now()
		}

		sampleBytes, _ := json.Marshal(sample)
		if err := locationsQueue.PublishBytes(sampleBytes); err != nil {
			log.Error().Err(err).Msg("Failed to queue position sample")
		}
	})

	if err != nil {
		return err
	}

	log.Info().Str("subject", feedSubject).Msg("Subscribed to position feed")

	return nil
}

func (f *FeedSubscriber) Close() {
	if f.conn != nil {
		f.conn.Drain()
		f.conn.Close()
	}
}
