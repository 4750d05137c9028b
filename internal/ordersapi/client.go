package ordersapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aquamarinepk/aqm"

	"github.com/comandaclub/boardsync/internal/board"
	"github.com/comandaclub/boardsync/pkg/enums/orderstatus"
)

// DataAccess centralizes decoding of the orders backend's responses.
// The kitchen board endpoint answers in two shapes depending on the
// backend version: a flat list of orders, or an object grouping them by
// status. Both decode into the same flat list here.
type DataAccess struct {
	client *aqm.ServiceClient
	logger aqm.Logger
}

func NewDataAccess(client *aqm.ServiceClient, logger aqm.Logger) *DataAccess {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &DataAccess{client: client, logger: logger}
}

// GetKitchenBoard fetches every active order for the business.
func (da *DataAccess) GetKitchenBoard(ctx context.Context, businessID int) ([]board.RawOrder, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("orders client not configured")
	}
	if businessID == 0 {
		return nil, fmt.Errorf("missing business id")
	}

	path := fmt.Sprintf("/pedidos/cocina?id_negocio=%d", businessID)
	resp, err := da.client.Request(ctx, "GET", path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching kitchen board: %w", err)
	}

	orders, err := decodeBoard(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding kitchen board: %w", err)
	}

	da.logger.Debug("kitchen board fetched", "orders", len(orders))
	return orders, nil
}

// UpdateKitchenOrderStatus advances one order a single status step.
func (da *DataAccess) UpdateKitchenOrderStatus(ctx context.Context, orderID int, status orderstatus.Status) error {
	if da == nil || da.client == nil {
		return fmt.Errorf("orders client not configured")
	}
	if orderID == 0 {
		return fmt.Errorf("missing order id")
	}
	if status.IsZero() {
		return fmt.Errorf("missing target status")
	}

	path := fmt.Sprintf("/pedidos/%d/estado", orderID)
	body := map[string]string{"estado": status.Code()}
	if _, err := da.client.Request(ctx, "PATCH", path, body); err != nil {
		return fmt.Errorf("updating order %d to %s: %w", orderID, status.Code(), err)
	}
	return nil
}

// decodeBoard accepts both response shapes. Grouped responses are
// flattened; the group key is authoritative only when the order itself
// carries no status.
func decodeBoard(data interface{}) ([]board.RawOrder, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var flat []board.RawOrder
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var grouped map[string][]board.RawOrder
	if err := json.Unmarshal(raw, &grouped); err != nil {
		return nil, fmt.Errorf("unexpected board response shape: %w", err)
	}

	var orders []board.RawOrder
	for group, members := range grouped {
		status := orderstatus.ByName(group)
		for _, o := range members {
			if o.Status.IsZero() && status != nil {
				o.Status = *status
			}
			orders = append(orders, o)
		}
	}
	return orders, nil
}
