package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	SamplesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arrivo_samples_ingested_total",
		Help: "Raw position samples accepted by the location smoother",
	})

	SamplesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arrivo_samples_rejected_total",
		Help: "Raw position samples rejected at the ingestion boundary",
	}, []string{"reason"})

	ProximityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arrivo_proximity_events_total",
		Help: "Proximity events emitted by the geofence evaluator",
	}, []string{"kind"})

	TriggersFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arrivo_triggers_fired_total",
		Help: "Notification decisions emitted by the trigger engine",
	})

	TriggersSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arrivo_triggers_suppressed_total",
		Help: "Subscription matches suppressed before firing",
	}, []string{"reason"})

	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arrivo_notifications_dispatched_total",
		Help: "Notification messages handed to the outbound queue",
	}, []string{"channel"})

	BroadcastClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arrivo_broadcast_clients",
		Help: "Live websocket connections per audience",
	}, []string{"audience"})

	EvaluatorTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arrivo_evaluator_tick_seconds",
		Help:    "Wall time of a single geofence evaluation tick",
		Buckets: prometheus.DefBuckets,
	})
)

func ObserveTick(start time.Time) {
	EvaluatorTickDuration.Observe(time.Since(start).Seconds())
}

// StartServer exposes /metrics on the given address. An empty address
// disables the server.
func StartServer(addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
}
