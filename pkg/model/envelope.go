package model

import (
	"encoding/json"
	"time"
)

// Envelope is the server to client broadcast frame.
type Envelope struct {
	Type      EnvelopeType `json:"type"`
	Data      any          `json:"data,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

type EnvelopeType string

const (
	EnvelopeTypeConnectionEstablished EnvelopeType = "connection_established"
	EnvelopeTypeLocationUpdate        EnvelopeType = "location_update"
	EnvelopeTypeAdminUpdate           EnvelopeType = "admin_update"
	EnvelopeTypePong                  EnvelopeType = "pong"
)

func NewEnvelope(envelopeType EnvelopeType, data any) Envelope {
	return Envelope{
		Type:      envelopeType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// ClientMessage is the decoded form of an inbound control frame. The kinds
// form a closed set, anything else decodes as ClientMessageKindUnknown so a
// newer client cannot be misread as one of the known kinds.
type ClientMessage struct {
	Kind      ClientMessageKind
	VehicleID string
}

type ClientMessageKind string

const (
	ClientMessageKindPing             ClientMessageKind = "ping"
	ClientMessageKindSubscribeVehicle ClientMessageKind = "subscribe_vehicle"
	ClientMessageKindUnsubscribe      ClientMessageKind = "unsubscribe_vehicle"
	ClientMessageKindUnknown          ClientMessageKind = "unknown"
)

type rawClientMessage struct {
	Type      string `json:"type"`
	VehicleID string `json:"vehicle_id"`
}

// DecodeClientMessage parses an inbound payload. An error means the payload
// was not valid JSON at all; an unrecognised but well-formed message comes
// back with ClientMessageKindUnknown.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var raw rawClientMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return ClientMessage{}, err
	}

	switch raw.Type {
	case string(ClientMessageKindPing):
		return ClientMessage{Kind: ClientMessageKindPing}, nil
	case string(ClientMessageKindSubscribeVehicle):
		return ClientMessage{Kind: ClientMessageKindSubscribeVehicle, VehicleID: raw.VehicleID}, nil
	case string(ClientMessageKindUnsubscribe):
		return ClientMessage{Kind: ClientMessageKindUnsubscribe, VehicleID: raw.VehicleID}, nil
	default:
		return ClientMessage{Kind: ClientMessageKindUnknown}, nil
	}
}
