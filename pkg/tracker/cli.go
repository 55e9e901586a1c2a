package tracker

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/composer"
	"github.com/arrivo-transit/arrivo/pkg/config"
	"github.com/arrivo-transit/arrivo/pkg/database"
	"github.com/arrivo-transit/arrivo/pkg/geofence"
	"github.com/arrivo-transit/arrivo/pkg/metrics"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/arrivo-transit/arrivo/pkg/notify"
	"github.com/arrivo-transit/arrivo/pkg/redis_client"
	"github.com/arrivo-transit/arrivo/pkg/snapshot"
	"github.com/arrivo-transit/arrivo/pkg/trigger"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const snapshotRefreshInterval = 1 * time.Minute
const compactionInterval = 5 * time.Minute
const mirrorExpiration = 10 * time.Minute

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "tracker",
		Usage: "Realtime engine ingests vehicle positions and drives arrival notifications",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run an instance of the realtime proximity pipeline",
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					pipelineConfig, err := config.Load()
					if err != nil {
						return err
					}

					ctx, cancel := context.WithCancel(context.Background())

					repository := snapshot.NewRepository(snapshotRefreshInterval)
					go repository.Run(ctx)

					smoother := NewSmoother(pipelineConfig.Smoothing, NewRedisMirror(mirrorExpiration))
					go runCompactor(ctx, smoother)

					messageComposer := composer.New(pipelineConfig.Composer)

					dispatcher, err := notify.NewDispatcher(messageComposer)
					if err != nil {
						return err
					}

					engine := trigger.NewEngine(pipelineConfig.Trigger, repository, dispatcher)
					go engine.RunCleaner(ctx)

					evaluator := geofence.NewEvaluator(pipelineConfig.Geofence, smoother, repository, engine)
					go evaluator.Run(ctx)

					feed, err := NewFeedSubscriber()
					if err != nil {
						return err
					}
					if err := feed.Run(); err != nil {
						return err
					}

					StartConsumers(smoother)

					metrics.StartServer(os.Getenv("ARRIVO_METRICS_ADDR"))

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					cancel()
					feed.Close()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					return nil
				},
			},
			{
				Name:  "test-sample",
				Usage: "publish a synthetic position sample onto the locations queue",
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					sample := model.VehiclePositionSample{
						VehicleID:  "KA-01-F-1234",
						Latitude:   12.9716,
						Longitude:  77.5946,
						SpeedKmh:   24,
						BearingDeg: 90,
						Timestamp:  time.Now(),
					}

					locationsQueue, err := redis_client.QueueConnection.OpenQueue(redis_client.QueueLocations)
					if err != nil {
						log.Fatal().Err(err).Msg("Failed to open locations queue")
					}

					sampleBytes, _ := json.Marshal(sample)

					pretty.Println(sample)

					return locationsQueue.PublishBytes(sampleBytes)
				},
			},
		},
	}
}

func runCompactor(ctx context.Context, smoother *Smoother) {
	ticker := time.NewTicker(compactionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := smoother.Compact(time.Now()); removed != 0 {
				log.Info().Int("removed", removed).Msg("Compacted dead vehicle entries")
			}
		}
	}
}
