// Package snapshot provides read-only, periodically refreshed views of the
// static reference data (stops, subscriptions) held in the persistent store.
// The pipeline never talks to the store directly; it reads whichever snapshot
// was current when the tick started. Eventual freshness is acceptable.
package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/database"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
)

type Repository struct {
	mutex sync.RWMutex

	stops         map[string]*model.Stop
	subscriptions []*model.Subscription

	// subscriptions indexed by the stop they watch
	subscriptionsByStop map[string][]*model.Subscription

	refreshInterval time.Duration
}

func NewRepository(refreshInterval time.Duration) *Repository {
	return &Repository{
		stops:               map[string]*model.Stop{},
		subscriptionsByStop: map[string][]*model.Subscription{},
		refreshInterval:     refreshInterval,
	}
}

// Refresh replaces both snapshots from the store. The swap is atomic, readers
// either see the old world or the new one.
func (r *Repository) Refresh(ctx context.Context) error {
	stops, err := loadStops(ctx)
	if err != nil {
		return err
	}

	subscriptions, err := loadSubscriptions(ctx)
	if err != nil {
		return err
	}

	byStop := map[string][]*model.Subscription{}
	for _, subscription := range subscriptions {
		byStop[subscription.StopRef] = append(byStop[subscription.StopRef], subscription)
	}

	r.mutex.Lock()
	r.stops = stops
	r.subscriptions = subscriptions
	r.subscriptionsByStop = byStop
	r.mutex.Unlock()

	log.Debug().
		Int("stops", len(stops)).
		Int("subscriptions", len(subscriptions)).
		Msg("Refreshed reference snapshots")

	return nil
}

// Run refreshes on an interval until the context is cancelled. Individual
// failures are retried with exponential backoff and never kill the loop.
func (r *Repository) Run(ctx context.Context) {
	refresh := func() {
		err := backoff.Retry(func() error {
			return r.Refresh(ctx)
		}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx))

		if err != nil {
			log.Error().Err(err).Msg("Failed to refresh reference snapshots")
		}
	}

	refresh()

	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

func (r *Repository) Stop(stopRef string) *model.Stop {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.stops[stopRef]
}

func (r *Repository) Stops() []*model.Stop {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stops := make([]*model.Stop, 0, len(r.stops))
	for _, stop := range r.stops {
		stops = append(stops, stop)
	}

	return stops
}

// ActiveSubscriptionsForStop returns the active subscriptions watching a stop.
func (r *Repository) ActiveSubscriptionsForStop(stopRef string) []*model.Subscription {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var active []*model.Subscription
	for _, subscription := range r.subscriptionsByStop[stopRef] {
		if subscription.Active {
			active = append(active, subscription)
		}
	}

	return active
}

func loadStops(ctx context.Context) (map[string]*model.Stop, error) {
	cursor, err := database.GetCollection("stops").Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	stops := map[string]*model.Stop{}
	for cursor.Next(ctx) {
		var stop model.Stop
		if err := cursor.Decode(&stop); err != nil {
			log.Warn().Err(err).Msg("Failed to decode stop record")
			continue
		}

		stops[stop.PrimaryIdentifier] = &stop
	}

	return stops, cursor.Err()
}

func loadSubscriptions(ctx context.Context) ([]*model.Subscription, error) {
	cursor, err := database.GetCollection("subscriptions").Find(ctx, bson.M{"active": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subscriptions []*model.Subscription
	for cursor.Next(ctx) {
		var subscription model.Subscription
		if err := cursor.Decode(&subscription); err != nil {
			log.Warn().Err(err).Msg("Failed to decode subscription record")
			continue
		}

		subscriptions = append(subscriptions, &subscription)
	}

	return subscriptions, cursor.Err()
}
