package event

import (
	"encoding/json"
	"testing"
)

func TestEnvelopeValid(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want bool
	}{
		{
			name: "complete",
			env: Envelope{
				EventID:   "evt-1",
				Type:      TypeOrderCreated,
				Timestamp: 1700000000000,
				Payload:   json.RawMessage(`{"id":1}`),
			},
			want: true,
		},
		{
			name: "missingEventID",
			env: Envelope{
				Type:      TypeOrderCreated,
				Timestamp: 1700000000000,
				Payload:   json.RawMessage(`{"id":1}`),
			},
			want: false,
		},
		{
			name: "missingType",
			env: Envelope{
				EventID:   "evt-1",
				Timestamp: 1700000000000,
				Payload:   json.RawMessage(`{"id":1}`),
			},
			want: false,
		},
		{
			name: "missingTimestamp",
			env: Envelope{
				EventID: "evt-1",
				Type:    TypeOrderCreated,
				Payload: json.RawMessage(`{"id":1}`),
			},
			want: false,
		},
		{
			name: "missingPayload",
			env: Envelope{
				EventID:   "evt-1",
				Type:      TypeOrderCreated,
				Timestamp: 1700000000000,
			},
			want: false,
		},
		{
			name: "nullPayload",
			env: Envelope{
				EventID:   "evt-1",
				Type:      TypeOrderCreated,
				Timestamp: 1700000000000,
				Payload:   json.RawMessage(`null`),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.env.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnvelopeDecode(t *testing.T) {
	raw := `{"eventId":"evt-9","type":"order.status.changed","timestamp":1700000000000,"payload":{"id":42,"estado":"listo"}}`

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if env.EventID != "evt-9" {
		t.Errorf("EventID = %q, want %q", env.EventID, "evt-9")
	}
	if env.Type != TypeOrderStatusChanged {
		t.Errorf("Type = %q, want %q", env.Type, TypeOrderStatusChanged)
	}
	if !env.Valid() {
		t.Error("Valid() = false, want true")
	}
}
