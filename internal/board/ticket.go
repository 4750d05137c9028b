package board

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/comandaclub/boardsync/pkg/enums/boardstatus"
	"github.com/comandaclub/boardsync/pkg/enums/orderstatus"
)

// Priority is the kitchen urgency of a ticket.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityVIP    Priority = "vip"
)

// Elevated reports whether the ticket should surface above normal work.
func (p Priority) Elevated() bool {
	return p == PriorityHigh || p == PriorityVIP
}

// UnmarshalJSON accepts the named levels as well as the backend's boolean
// prioridad flag (true reads as high). Anything else reads as normal.
func (p *Priority) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true":
		*p = PriorityHigh
		return nil
	case "false", "null", "":
		*p = PriorityNormal
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		*p = PriorityNormal
		return nil
	}
	switch strings.ToLower(name) {
	case string(PriorityVIP):
		*p = PriorityVIP
	case string(PriorityHigh), "alta":
		*p = PriorityHigh
	default:
		*p = PriorityNormal
	}
	return nil
}

// Ticket is one card on the kitchen board. Status is always derived
// from RawStatus and kept alongside it so consumers never re-derive.
type Ticket struct {
	ID         int                `json:"id"`
	BusinessID int                `json:"businessId,omitempty"`
	Code       string             `json:"code,omitempty"`
	Table      string             `json:"table,omitempty"`
	Customer   string             `json:"customer,omitempty"`
	Notes      string             `json:"notes,omitempty"`
	Priority   Priority           `json:"priority"`
	Total      float64            `json:"total,omitempty"`
	Items      []TicketItem       `json:"items"`
	RawStatus  orderstatus.Status `json:"rawStatus"`
	Status     boardstatus.Status `json:"status"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// TicketItem is a line of the order as shown on the card.
type TicketItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price,omitempty"`
	Notes    string  `json:"notes,omitempty"`
}

// rank is the board sort key: column first, oldest first within it.
func (t Ticket) rank() int {
	return t.Status.Rank()
}
