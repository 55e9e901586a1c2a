package broadcast

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/config"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	payloads [][]byte
	failing  bool
	closed   bool
}

func (c *fakeConn) WriteWithDeadline(payload []byte, deadline time.Time) error {
	if c.failing {
		return errors.New("connection reset")
	}

	c.payloads = append(c.payloads, payload)

	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) lastEnvelope(t *testing.T) model.Envelope {
	t.Helper()
	require.NotEmpty(t, c.payloads)

	var envelope model.Envelope
	require.NoError(t, json.Unmarshal(c.payloads[len(c.payloads)-1], &envelope))

	return envelope
}

func testHub() *Hub {
	return NewHub(config.Defaults().Broadcast)
}

func TestConnectSendsAck(t *testing.T) {
	hub := testHub()
	conn := &fakeConn{}

	hub.Connect(conn, AudienceRealtime)

	assert.Equal(t, model.EnvelopeTypeConnectionEstablished, conn.lastEnvelope(t).Type)
}

func TestPublishEmptyAudienceIsNoOp(t *testing.T) {
	hub := testHub()

	hub.Publish(AudienceAdmin, model.NewEnvelope(model.EnvelopeTypeAdminUpdate, nil))
}

func TestPublishReachesOnlyAudience(t *testing.T) {
	hub := testHub()
	realtime := &fakeConn{}
	admin := &fakeConn{}

	hub.Connect(realtime, AudienceRealtime)
	hub.Connect(admin, AudienceAdmin)

	hub.Publish(AudienceRealtime, model.NewEnvelope(model.EnvelopeTypeLocationUpdate, model.SmoothedLocation{VehicleID: "bus-1"}))

	assert.Equal(t, model.EnvelopeTypeLocationUpdate, realtime.lastEnvelope(t).Type)
	// admin only ever saw its ack
	assert.Equal(t, model.EnvelopeTypeConnectionEstablished, admin.lastEnvelope(t).Type)
}

func TestPublishPartialFailure(t *testing.T) {
	hub := testHub()
	healthy1 := &fakeConn{}
	broken := &fakeConn{}
	healthy2 := &fakeConn{}

	hub.Connect(healthy1, AudienceRealtime)
	hub.Connect(healthy2, AudienceRealtime)
	hub.Connect(broken, AudienceRealtime)
	broken.failing = true

	hub.Publish(AudienceRealtime, model.NewEnvelope(model.EnvelopeTypeLocationUpdate, model.SmoothedLocation{VehicleID: "bus-1"}))

	// healthy connections got the message
	assert.Equal(t, model.EnvelopeTypeLocationUpdate, healthy1.lastEnvelope(t).Type)
	assert.Equal(t, model.EnvelopeTypeLocationUpdate, healthy2.lastEnvelope(t).Type)

	// the failed one was dropped and no longer receives anything
	assert.True(t, broken.closed)

	broken.failing = false
	hub.Publish(AudienceRealtime, model.NewEnvelope(model.EnvelopeTypeLocationUpdate, model.SmoothedLocation{VehicleID: "bus-2"}))
	assert.Empty(t, broken.payloads)
}

func TestDisconnectIdempotent(t *testing.T) {
	hub := testHub()
	conn := &fakeConn{}

	hub.Connect(conn, AudienceDriver)
	hub.Disconnect(conn)
	hub.Disconnect(conn)

	assert.True(t, conn.closed)
}

func TestPingElicitsPong(t *testing.T) {
	hub := testHub()
	conn := &fakeConn{}

	hub.Connect(conn, AudienceRealtime)
	hub.HandleClientMessage(conn, []byte(`{"type":"ping"}`))

	assert.Equal(t, model.EnvelopeTypePong, conn.lastEnvelope(t).Type)
}

func TestMalformedClientPayloadIgnored(t *testing.T) {
	hub := testHub()
	conn := &fakeConn{}

	hub.Connect(conn, AudienceRealtime)
	hub.HandleClientMessage(conn, []byte(`{not json`))

	// connection stays registered, no response sent
	assert.Equal(t, model.EnvelopeTypeConnectionEstablished, conn.lastEnvelope(t).Type)

	hub.Publish(AudienceRealtime, model.NewEnvelope(model.EnvelopeTypeAdminUpdate, nil))
	assert.Equal(t, model.EnvelopeTypeAdminUpdate, conn.lastEnvelope(t).Type)
}

func TestInterestFilterLimitsLocationUpdates(t *testing.T) {
	hub := testHub()
	filtered := &fakeConn{}
	unfiltered := &fakeConn{}

	hub.Connect(filtered, AudienceRealtime)
	hub.Connect(unfiltered, AudienceRealtime)

	hub.HandleClientMessage(filtered, []byte(`{"type":"subscribe_vehicle","vehicle_id":"bus-7"}`))

	hub.Publish(AudienceRealtime, model.NewEnvelope(model.EnvelopeTypeLocationUpdate, model.SmoothedLocation{VehicleID: "bus-1"}))

	// the filtered connection skipped the unmatched vehicle
	assert.Equal(t, model.EnvelopeTypeConnectionEstablished, filtered.lastEnvelope(t).Type)
	assert.Equal(t, model.EnvelopeTypeLocationUpdate, unfiltered.lastEnvelope(t).Type)

	hub.Publish(AudienceRealtime, model.NewEnvelope(model.EnvelopeTypeLocationUpdate, model.SmoothedLocation{VehicleID: "bus-7"}))
	assert.Equal(t, model.EnvelopeTypeLocationUpdate, filtered.lastEnvelope(t).Type)

	// unsubscribing clears the filter
	hub.HandleClientMessage(filtered, []byte(`{"type":"unsubscribe_vehicle","vehicle_id":"bus-7"}`))
	hub.Publish(AudienceRealtime, model.NewEnvelope(model.EnvelopeTypeLocationUpdate, model.SmoothedLocation{VehicleID: "bus-1"}))
	assert.Equal(t, model.EnvelopeTypeLocationUpdate, filtered.lastEnvelope(t).Type)

	admin := model.NewEnvelope(model.EnvelopeTypeAdminUpdate, nil)
	hub.Publish(AudienceRealtime, admin)
	assert.Equal(t, model.EnvelopeTypeAdminUpdate, filtered.lastEnvelope(t).Type)
}
