package redis_client

import (
	"context"
	"strconv"

	"github.com/adjust/rmq/v5"
	"github.com/arrivo-transit/arrivo/pkg/util"
	"github.com/redis/go-redis/v9"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const defaultConnectionAddress = "localhost:6379"
const defaultConnectionPassword = ""
const defaultDatabase = 0

// Queue names shared between the pipeline services.
const (
	QueueLocations     = "locations-queue"
	QueueEvents        = "events-queue"
	QueueNotifications = "notify-queue"
)

func Connect() error {
	address := defaultConnectionAddress
	password := defaultConnectionPassword
	database := defaultDatabase

	env := util.GetEnvironmentVariables()

	if env["ARRIVO_REDIS_ADDRESS"] != "" {
		address = env["ARRIVO_REDIS_ADDRESS"]
	}

	if env["ARRIVO_REDIS_PASSWORD"] != "" {
		password = env["ARRIVO_REDIS_PASSWORD"]
	}

	if env["ARRIVO_REDIS_DATABASE"] != "" {
		if n, err := strconv.Atoi(env["ARRIVO_REDIS_DATABASE"]); err == nil {
			database = n
		} else {
			return err
		}
	}

	if password == "" {
		Client = redis.NewClient(&redis.Options{
			Addr: address,
			DB:   database,
		})
	} else {
		Client = redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       database,
		})
	}

	statusCmd := Client.Ping(context.Background())
	err := statusCmd.Err()
	if err != nil {
		return err
	}

	QueueConnection, err = rmq.OpenConnectionWithRedisClient("arrivo", Client, nil)

	if err != nil {
		return err
	}

	return nil
}
