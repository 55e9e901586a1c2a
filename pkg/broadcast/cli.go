package broadcast

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/config"
	"github.com/arrivo-transit/arrivo/pkg/consumer"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/arrivo-transit/arrivo/pkg/redis_client"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "broadcast",
		Usage: "Provides the live broadcast hub",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run broadcast hub server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8081",
						Usage: "listen target for the websocket server",
					},
				},
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					pipelineConfig, err := config.Load()
					if err != nil {
						return err
					}

					hub := NewHub(pipelineConfig.Broadcast)

					ctx, cancel := context.WithCancel(context.Background())
					go hub.Run(ctx)

					redisConsumer := consumer.RedisConsumer{
						QueueName:       redis_client.QueueEvents,
						NumberConsumers: 2,
						BatchSize:       50,
						Timeout:         1 * time.Second,
						Consumer:        NewEventBatchConsumer(hub.Inbox()),
					}
					redisConsumer.Setup()

					server := NewServer(hub)
					go func() {
						if err := server.Listen(c.String("listen")); err != nil {
							log.Fatal().Err(err).Msg("Broadcast server failed")
						}
					}()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					cancel()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					return nil
				},
			},
			{
				Name:  "test-event",
				Usage: "publish a test admin update onto the events queue",
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					eventsQueue, err := redis_client.QueueConnection.OpenQueue(redis_client.QueueEvents)
					if err != nil {
						log.Fatal().Err(err).Msg("Failed to open events queue")
					}

					envelope := model.NewEnvelope(model.EnvelopeTypeAdminUpdate, map[string]string{
						"title":   "Route diversion",
						"message": "Route 335E diverted via Old Airport Road today",
					})

					envelopeBytes, _ := json.Marshal(envelope)

					return eventsQueue.PublishBytes(envelopeBytes)
				},
			},
		},
	}
}
