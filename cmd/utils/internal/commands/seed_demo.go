package commands

import (
	"context"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/comandaclub/boardsync/internal/board"
	"github.com/comandaclub/boardsync/pkg/enums/boardstatus"
	"github.com/comandaclub/boardsync/pkg/enums/orderstatus"
)

// SeedDemo writes a small sample board into the snapshot store so the
// service starts with visible cards even without a backend.
func SeedDemo(ctx context.Context, config *aqm.Config, logger aqm.Logger) error {
	store, err := openSnapshot(config, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	now := time.Now()
	tickets := []board.Ticket{
		{
			ID:        9001,
			Code:      "P-9001",
			Table:     "3",
			Priority:  board.PriorityNormal,
			RawStatus: orderstatus.Statuses.Pendiente,
			Status:    boardstatus.Statuses.Pending,
			CreatedAt: now.Add(-12 * time.Minute),
			Items: []board.TicketItem{
				{Name: "Lomo saltado", Quantity: 2},
				{Name: "Chicha morada", Quantity: 2},
			},
		},
		{
			ID:        9002,
			Code:      "P-9002",
			Table:     "Terraza 1",
			Priority:  board.PriorityHigh,
			RawStatus: orderstatus.Statuses.EnPreparacion,
			Status:    boardstatus.Statuses.Prepping,
			CreatedAt: now.Add(-8 * time.Minute),
			Items: []board.TicketItem{
				{Name: "Ceviche mixto", Quantity: 1, Notes: "sin aji"},
			},
		},
		{
			ID:        9003,
			Code:      "P-9003",
			Table:     "5",
			Priority:  board.PriorityVIP,
			RawStatus: orderstatus.Statuses.Listo,
			Status:    boardstatus.Statuses.Ready,
			CreatedAt: now.Add(-3 * time.Minute),
			Items: []board.TicketItem{
				{Name: "Causa limena", Quantity: 3},
			},
		},
	}

	state := board.State{
		Tickets: tickets,
		Filters: board.DefaultFilters(),
	}

	if err := store.Save(ctx, state); err != nil {
		return err
	}

	logger.Info("demo board written", "tickets", len(tickets))
	return nil
}
