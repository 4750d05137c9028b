package orderstatus

import (
	"encoding/json"
	"strings"
)

// Status is a backend order status. The backend is the source of truth
// for these values; the board never invents one.
type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	parts := strings.Split(s.Name, "_")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

// IsZero reports whether the status is unknown or unsynced.
func (s Status) IsZero() bool {
	return s.Name == ""
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
	Pendiente     Status
	Confirmado    Status
	EnPreparacion Status
	Listo         Status
	Entregado     Status
	Cancelado     Status
}

var Statuses = Enum{
	Pendiente:     Status{Name: "pendiente"},
	Confirmado:    Status{Name: "confirmado"},
	EnPreparacion: Status{Name: "en_preparacion"},
	Listo:         Status{Name: "listo"},
	Entregado:     Status{Name: "entregado"},
	Cancelado:     Status{Name: "cancelado"},
}

// Pipeline is the forward progression of an order. Cancelado is absorbing
// and sits outside the pipeline.
var Pipeline = []Status{
	Statuses.Pendiente,
	Statuses.Confirmado,
	Statuses.EnPreparacion,
	Statuses.Listo,
	Statuses.Entregado,
}

var All = []Status{
	Statuses.Pendiente,
	Statuses.Confirmado,
	Statuses.EnPreparacion,
	Statuses.Listo,
	Statuses.Entregado,
	Statuses.Cancelado,
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

// position returns the index of s in the pipeline, or -1 for unknown
// statuses and for cancelado.
func position(s Status) int {
	for i, p := range Pipeline {
		if p.Name == s.Name {
			return i
		}
	}
	return -1
}

// ForwardSequence returns the ordered single-step statuses needed to move
// an order from current (exclusive) to target (inclusive) along the
// pipeline. An unknown or unsynced current status yields the full prefix
// up to the target (a catch-up from the beginning). A target that is not
// strictly ahead of the current position yields an empty sequence.
func ForwardSequence(current, target Status) []Status {
	to := position(target)
	if to < 0 {
		return nil
	}
	from := position(current)
	if from >= to {
		return nil
	}
	seq := make([]Status, 0, to-from)
	for i := from + 1; i <= to; i++ {
		seq = append(seq, Pipeline[i])
	}
	return seq
}
