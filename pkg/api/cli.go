package api

import (
	"context"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/database"
	"github.com/arrivo-transit/arrivo/pkg/redis_client"
	"github.com/arrivo-transit/arrivo/pkg/snapshot"
	"github.com/arrivo-transit/arrivo/pkg/tracker"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the core web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					repository := snapshot.NewRepository(1 * time.Minute)
					go repository.Run(context.Background())

					mirror := tracker.NewRedisMirror(10 * time.Minute)

					return SetupServer(c.String("listen"), mirror, repository)
				},
			},
		},
	}
}
