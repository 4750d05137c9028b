package board

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/comandaclub/boardsync/pkg/enums/boardstatus"
	"github.com/comandaclub/boardsync/pkg/enums/orderstatus"
)

// RawOrder is the backend's order document as it arrives over the wire,
// either inside an event payload or from the board endpoint. Field
// names vary between endpoints, so aliases are decoded side by side and
// coalesced during projection.
type RawOrder struct {
	ID         flexInt            `json:"id"`
	IDPedido   flexInt            `json:"id_pedido"`
	IDNegocio  flexInt            `json:"id_negocio"`
	Code       flexString         `json:"codigo"`
	Table      flexString         `json:"mesa"`
	Customer   flexString         `json:"cliente"`
	Notes      flexString         `json:"observaciones"`
	Priority   Priority           `json:"prioridad"`
	Total      flexFloat          `json:"total"`
	Status     orderstatus.Status `json:"estado"`
	CreatedAt  flexTime           `json:"fecha_creacion"`
	UpdatedAt  flexTime           `json:"fecha_actualizacion"`

	SaleDetail  []RawOrderLine `json:"detalle_venta"`
	OrderDetail []RawOrderLine `json:"detalle_pedido"`
}

// RawOrderLine is one line of the order detail.
type RawOrderLine struct {
	Quantity flexInt    `json:"cantidad"`
	Price    flexFloat  `json:"precio_unitario"`
	Notes    flexString `json:"notas"`
	Product  struct {
		Name flexString `json:"nombre"`
	} `json:"producto"`
	Name flexString `json:"nombre"`
}

// OrderID coalesces the two ID aliases. Zero means the document carries
// no usable identifier and must be discarded.
func (o RawOrder) OrderID() int {
	if o.ID != 0 {
		return int(o.ID)
	}
	return int(o.IDPedido)
}

// MapOrderToTicket projects a backend order onto a board ticket. The
// boolean is false when the order has no identifier.
func MapOrderToTicket(o RawOrder) (Ticket, bool) {
	id := o.OrderID()
	if id == 0 {
		return Ticket{}, false
	}

	lines := o.SaleDetail
	if len(lines) == 0 {
		lines = o.OrderDetail
	}

	items := make([]TicketItem, 0, len(lines))
	for _, line := range lines {
		name := string(line.Product.Name)
		if name == "" {
			name = string(line.Name)
		}
		qty := int(line.Quantity)
		if qty <= 0 {
			qty = 1
		}
		items = append(items, TicketItem{
			Name:     name,
			Quantity: qty,
			Price:    float64(line.Price),
			Notes:    string(line.Notes),
		})
	}

	code := string(o.Code)
	if code == "" {
		code = fmt.Sprintf("P-%d", id)
	}

	priority := o.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	return Ticket{
		ID:         id,
		BusinessID: int(o.IDNegocio),
		Code:       code,
		Table:      string(o.Table),
		Customer:   string(o.Customer),
		Notes:      string(o.Notes),
		Priority:   priority,
		Total:      float64(o.Total),
		Items:      items,
		RawStatus:  o.Status,
		Status:     boardstatus.FromRaw(o.Status),
		CreatedAt:  time.Time(o.CreatedAt),
		UpdatedAt:  time.Time(o.UpdatedAt),
	}, true
}

// flexString decodes a JSON string or number into a string. The backend
// sends table and code as either depending on the endpoint.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexInt decodes a JSON number or numeric string into an int.
type flexInt int

func (i *flexInt) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		*i = 0
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		if str == "" {
			*i = 0
			return nil
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return err
		}
		*i = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*i = flexInt(n)
	return nil
}

// flexFloat decodes a JSON number or numeric string into a float64.
// Money fields arrive both ways depending on the endpoint.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		if str == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// flexTime decodes RFC 3339 strings, bare datetime strings and unix
// millisecond numbers, all of which the backend has been seen to emit.
type flexTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		*t = flexTime(time.Time{})
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		if str == "" {
			*t = flexTime(time.Time{})
			return nil
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, str); err == nil {
				*t = flexTime(parsed)
				return nil
			}
		}
		*t = flexTime(time.Time{})
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*t = flexTime(time.UnixMilli(ms))
	return nil
}

func (t flexTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t))
}
