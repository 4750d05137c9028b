package boardstatus

import (
	"encoding/json"
	"strings"

	"github.com/comandaclub/boardsync/pkg/enums/orderstatus"
)

// Status is a board column. It is always derived from a backend order
// status, never stored independently.
type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	if s.Name == "" {
		return ""
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Name)
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if known := ByName(name); known != nil {
		*s = *known
		return nil
	}
	*s = Status{Name: name}
	return nil
}

type Enum struct {
	Pending  Status
	Prepping Status
	Ready    Status
	Served   Status
}

var Statuses = Enum{
	Pending:  Status{Name: "pending"},
	Prepping: Status{Name: "prepping"},
	Ready:    Status{Name: "ready"},
	Served:   Status{Name: "served"},
}

var All = []Status{
	Statuses.Pending,
	Statuses.Prepping,
	Statuses.Ready,
	Statuses.Served,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// Rank gives the column ordering used to sort the board. Unknown
// statuses sort first, together with pending.
func (s Status) Rank() int {
	for i, b := range All {
		if b.Name == s.Name {
			return i
		}
	}
	return 0
}

// FromRaw projects a backend status onto its board column. Pendiente and
// confirmado share the pending column. Unrecognized statuses (including
// cancelado, which the board drops on reconciliation) fall back to
// pending.
func FromRaw(raw orderstatus.Status) Status {
	switch raw.Name {
	case orderstatus.Statuses.Pendiente.Name, orderstatus.Statuses.Confirmado.Name:
		return Statuses.Pending
	case orderstatus.Statuses.EnPreparacion.Name:
		return Statuses.Prepping
	case orderstatus.Statuses.Listo.Name:
		return Statuses.Ready
	case orderstatus.Statuses.Entregado.Name:
		return Statuses.Served
	default:
		return Statuses.Pending
	}
}

// RawTarget returns the backend status a move to this column must reach.
// Pending has no raw target: the board never moves an order backward.
func (s Status) RawTarget() (orderstatus.Status, bool) {
	switch s.Name {
	case Statuses.Prepping.Name:
		return orderstatus.Statuses.EnPreparacion, true
	case Statuses.Ready.Name:
		return orderstatus.Statuses.Listo, true
	case Statuses.Served.Name:
		return orderstatus.Statuses.Entregado, true
	default:
		return orderstatus.Status{}, false
	}
}
