package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/config"
	"github.com/arrivo-transit/arrivo/pkg/metrics"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type Audience string

const (
	AudienceRealtime Audience = "realtime"
	AudienceAdmin    Audience = "admin"
	AudienceDriver   Audience = "driver"
)

// Conn is one live subscriber connection. The hub only needs deadline-bounded
// writes; transport mechanics live in the websocket adapter.
type Conn interface {
	WriteWithDeadline(payload []byte, deadline time.Time) error
	Close() error
}

type connectionMeta struct {
	audience    Audience
	connectedAt time.Time

	// vehicle ids this connection asked to follow; empty means everything
	interests map[string]struct{}
}

// Hub owns the live connection sets, partitioned by audience. All state is
// constructed with the hub and guarded by its mutex; there are no ambient
// registries.
type Hub struct {
	mutex       sync.RWMutex
	connections map[Conn]*connectionMeta

	inbox chan model.Envelope

	config config.BroadcastConfig
}

func NewHub(cfg config.BroadcastConfig) *Hub {
	return &Hub{
		connections: map[Conn]*connectionMeta{},
		inbox:       make(chan model.Envelope, cfg.InboxSize),
		config:      cfg,
	}
}

// Connect registers the connection in its audience set and acknowledges it.
func (h *Hub) Connect(conn Conn, audience Audience) {
	h.mutex.Lock()
	h.connections[conn] = &connectionMeta{
		audience:    audience,
		connectedAt: time.Now(),
		interests:   map[string]struct{}{},
	}
	count := h.audienceSize(audience)
	h.mutex.Unlock()

	metrics.BroadcastClients.WithLabelValues(string(audience)).Set(float64(count))

	ack := model.NewEnvelope(model.EnvelopeTypeConnectionEstablished, map[string]string{
		"audience": string(audience),
	})
	h.send(conn, ack)

	log.Info().Str("audience", string(audience)).Msg("Client connected")
}

// Disconnect removes the connection and its metadata. Safe to call twice.
func (h *Hub) Disconnect(conn Conn) {
	h.mutex.Lock()
	meta, exists := h.connections[conn]
	if exists {
		delete(h.connections, conn)
	}
	var count int
	if exists {
		count = h.audienceSize(meta.audience)
	}
	h.mutex.Unlock()

	if !exists {
		return
	}

	conn.Close()
	metrics.BroadcastClients.WithLabelValues(string(meta.audience)).Set(float64(count))

	log.Info().Str("audience", string(meta.audience)).Msg("Client disconnected")
}

// Publish serializes the envelope once and sends it to every connection in
// the audience. A failed send drops that connection without holding up the
// rest. Publishing to an empty audience is a no-op.
func (h *Hub) Publish(audience Audience, envelope model.Envelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		log.Error().Err(err).Str("type", string(envelope.Type)).Msg("Failed to serialize envelope")
		return
	}

	targets := h.audienceConnections(audience, envelope)
	if len(targets) == 0 {
		return
	}

	deadline := time.Now().Add(h.config.SendTimeout)

	var failed []Conn
	var failedMutex sync.Mutex

	var group conc.WaitGroup
	for _, conn := range targets {
		conn := conn
		group.Go(func() {
			if err := conn.WriteWithDeadline(payload, deadline); err != nil {
				failedMutex.Lock()
				failed = append(failed, conn)
				failedMutex.Unlock()
			}
		})
	}
	group.Wait()

	for _, conn := range failed {
		log.Warn().Str("audience", string(audience)).Msg("Dropping unresponsive client")
		h.Disconnect(conn)
	}
}

// audienceConnections snapshots the targets for one publish. Connections with
// interest filters only receive location updates for vehicles they follow.
func (h *Hub) audienceConnections(audience Audience, envelope model.Envelope) []Conn {
	vehicleID := locationVehicleID(envelope)

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	var targets []Conn
	for conn, meta := range h.connections {
		if meta.audience != audience {
			continue
		}

		if vehicleID != "" && len(meta.interests) > 0 {
			if _, interested := meta.interests[vehicleID]; !interested {
				continue
			}
		}

		targets = append(targets, conn)
	}

	return targets
}

func locationVehicleID(envelope model.Envelope) string {
	if envelope.Type != model.EnvelopeTypeLocationUpdate {
		return ""
	}

	if location, ok := envelope.Data.(model.SmoothedLocation); ok {
		return location.VehicleID
	}

	return ""
}

// HandleClientMessage processes one inbound control frame. Malformed payloads
// are logged and ignored; the connection stays open.
func (h *Hub) HandleClientMessage(conn Conn, payload []byte) {
	message, err := model.DecodeClientMessage(payload)
	if err != nil {
		log.Debug().Err(err).Msg("Ignored malformed client payload")
		return
	}

	switch message.Kind {
	case model.ClientMessageKindPing:
		h.send(conn, model.NewEnvelope(model.EnvelopeTypePong, nil))
	case model.ClientMessageKindSubscribeVehicle:
		h.setInterest(conn, message.VehicleID, true)
	case model.ClientMessageKindUnsubscribe:
		h.setInterest(conn, message.VehicleID, false)
	default:
		log.Debug().Msg("Ignored unknown client message")
	}
}

func (h *Hub) setInterest(conn Conn, vehicleID string, subscribe bool) {
	if vehicleID == "" {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	meta, exists := h.connections[conn]
	if !exists {
		return
	}

	if subscribe {
		meta.interests[vehicleID] = struct{}{}
	} else {
		delete(meta.interests, vehicleID)
	}
}

// Inbox is the bounded channel the external-event subscriber feeds.
func (h *Hub) Inbox() chan<- model.Envelope {
	return h.inbox
}

// Run drains the inbox and republishes to the relevant audiences until the
// context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("Starting broadcast hub")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Broadcast hub stopped")
			return
		case envelope := <-h.inbox:
			switch envelope.Type {
			case model.EnvelopeTypeLocationUpdate:
				h.Publish(AudienceRealtime, envelope)
				h.Publish(AudienceDriver, envelope)
			case model.EnvelopeTypeAdminUpdate:
				h.Publish(AudienceAdmin, envelope)
				h.Publish(AudienceRealtime, envelope)
			default:
				log.Debug().Str("type", string(envelope.Type)).Msg("Ignored event kind")
			}
		}
	}
}

func (h *Hub) send(conn Conn, envelope model.Envelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return
	}

	if err := conn.WriteWithDeadline(payload, time.Now().Add(h.config.SendTimeout)); err != nil {
		h.Disconnect(conn)
	}
}

// audienceSize must be called with the mutex held.
func (h *Hub) audienceSize(audience Audience) int {
	count := 0
	for _, meta := range h.connections {
		if meta.audience == audience {
			count++
		}
	}

	return count
}
