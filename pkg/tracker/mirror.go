package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/arrivo-transit/arrivo/pkg/redis_client"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
)

const mirrorKeyFormat = "vehicle-location/%s"

// RedisMirror keeps the latest smoothed location for each vehicle in redis
// with a TTL, so read-only services see vehicle state without holding the
// smoother's cache.
type RedisMirror struct {
	cache *cache.Cache[string]
}

func NewRedisMirror(expiration time.Duration) *RedisMirror {
	redisStore := redisstore.NewRedis(redis_client.Client, store.WithExpiration(expiration))

	return &RedisMirror{
		cache: cache.New[string](redisStore),
	}
}

func (m *RedisMirror) Set(ctx context.Context, vehicleID string, location model.SmoothedLocation) error {
	payload, err := location.MarshalBinary()
	if err != nil {
		return err
	}

	return m.cache.Set(ctx, fmt.Sprintf(mirrorKeyFormat, vehicleID), string(payload))
}

func (m *RedisMirror) Get(ctx context.Context, vehicleID string) (model.SmoothedLocation, error) {
	payload, err := m.cache.Get(ctx, fmt.Sprintf(mirrorKeyFormat, vehicleID))
	if err != nil {
		return model.SmoothedLocation{}, err
	}

	var location model.SmoothedLocation
	if err := json.Unmarshal([]byte(payload), &location); err != nil {
		return model.SmoothedLocation{}, err
	}

	return location, nil
}

// All scans the mirror keyspace and returns every live vehicle location.
func (m *RedisMirror) All(ctx context.Context) ([]model.SmoothedLocation, error) {
	var locations []model.SmoothedLocation

	iter := redis_client.Client.Scan(ctx, 0, fmt.Sprintf(mirrorKeyFormat, "*"), 0).Iterator()
	for iter.Next(ctx) {
		payload, err := redis_client.Client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}

		var location model.SmoothedLocation
		if err := json.Unmarshal([]byte(payload), &location); err != nil {
			continue
		}

		locations = append(locations, location)
	}

	return locations, iter.Err()
}
