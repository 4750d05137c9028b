package event

import (
	"bytes"
	"encoding/json"
)

// Inbound event names on the notifications channel.
const (
	TypeConnected          = "connected"
	TypeJoinedRoom         = "joined-room"
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status.changed"
	TypeRoomClosing        = "room.closing"

	// TypeMaxReconnections is synthesized by the client itself when the
	// reconnection budget is exhausted; it never arrives from the server.
	TypeMaxReconnections = "max-reconnections-reached"
)

// Outbound emit names.
const (
	EmitPing             = "ping"
	EmitJoinBusinessRoom = "join-business-room"
	EmitJoinOrderRoom    = "join-order-room"
)

// Envelope is the wire-level wrapper for every order event. All four
// fields are mandatory; an envelope missing any of them is dropped
// before dispatch.
type Envelope struct {
	EventID   string          `json:"eventId"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

var jsonNull = []byte("null")

// Valid reports whether the envelope carries all mandatory fields.
func (e Envelope) Valid() bool {
	if e.EventID == "" || e.Type == "" || e.Timestamp == 0 {
		return false
	}
	if len(e.Payload) == 0 || bytes.Equal(bytes.TrimSpace(e.Payload), jsonNull) {
		return false
	}
	return true
}

type JoinBusinessRoomPayload struct {
	IDNegocio int `json:"id_negocio"`
}

type JoinOrderRoomPayload struct {
	IDPedido int `json:"id_pedido"`
}

// MaxReconnectionsPayload is the payload of the synthetic envelope the
// client dispatches when it gives up reconnecting.
type MaxReconnectionsPayload struct {
	Message  string `json:"message"`
	Attempts int    `json:"attempts"`
}
