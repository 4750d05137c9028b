package orderstatus

import (
	"testing"
)

func TestByName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		found bool
	}{
		{"pendiente", "pendiente", true},
		{"confirmado", "confirmado", true},
		{"enPreparacion", "en_preparacion", true},
		{"listo", "listo", true},
		{"entregado", "entregado", true},
		{"cancelado", "cancelado", true},
		{"unknown", "reembolsado", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ByName(tt.input)
			if (got != nil) != tt.found {
				t.Errorf("ByName(%q) found = %v, want %v", tt.input, got != nil, tt.found)
			}
			if got != nil && got.Name != tt.input {
				t.Errorf("ByName(%q) = %q", tt.input, got.Name)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	if got := Statuses.EnPreparacion.Label(); got != "En Preparacion" {
		t.Errorf("Label() = %q, want %q", got, "En Preparacion")
	}
	if got := Statuses.Listo.Label(); got != "Listo" {
		t.Errorf("Label() = %q, want %q", got, "Listo")
	}
}

func TestForwardSequence(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		target  Status
		want    []Status
	}{
		{
			name:    "singleStep",
			current: Statuses.Confirmado,
			target:  Statuses.EnPreparacion,
			want:    []Status{Statuses.EnPreparacion},
		},
		{
			name:    "multipleSteps",
			current: Statuses.Pendiente,
			target:  Statuses.Listo,
			want:    []Status{Statuses.Confirmado, Statuses.EnPreparacion, Statuses.Listo},
		},
		{
			name:    "fullPipeline",
			current: Statuses.Pendiente,
			target:  Statuses.Entregado,
			want:    []Status{Statuses.Confirmado, Statuses.EnPreparacion, Statuses.Listo, Statuses.Entregado},
		},
		{
			name:    "sameStatus",
			current: Statuses.Listo,
			target:  Statuses.Listo,
			want:    nil,
		},
		{
			name:    "backward",
			current: Statuses.Listo,
			target:  Statuses.Confirmado,
			want:    nil,
		},
		{
			name:    "unknownCurrentCatchesUp",
			current: Status{Name: "misterio"},
			target:  Statuses.EnPreparacion,
			want:    []Status{Statuses.Pendiente, Statuses.Confirmado, Statuses.EnPreparacion},
		},
		{
			name:    "zeroCurrentCatchesUp",
			current: Status{},
			target:  Statuses.Pendiente,
			want:    []Status{Statuses.Pendiente},
		},
		{
			name:    "canceladoTarget",
			current: Statuses.Pendiente,
			target:  Statuses.Cancelado,
			want:    nil,
		},
		{
			name:    "canceladoCurrentCatchesUp",
			current: Statuses.Cancelado,
			target:  Statuses.Confirmado,
			want:    []Status{Statuses.Pendiente, Statuses.Confirmado},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ForwardSequence(tt.current, tt.target)
			if len(got) != len(tt.want) {
				t.Fatalf("ForwardSequence() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].Name != tt.want[i].Name {
					t.Errorf("ForwardSequence()[%d] = %q, want %q", i, got[i].Name, tt.want[i].Name)
				}
			}
		})
	}
}
