package events

import (
	"context"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/comandaclub/boardsync/internal/board"
	"github.com/comandaclub/boardsync/internal/notifications"
	"github.com/comandaclub/boardsync/pkg/event"
)

// defaultPollInterval is the fallback hydration cadence when the
// realtime channel misses something.
const defaultPollInterval = 60 * time.Second

// Connector glues the realtime channel to the board store: it keeps
// the store hydrated, folds live events into it and mirrors the
// connection state so the board can show it.
type Connector struct {
	hook   *notifications.Hook
	store  *board.Store
	url    string
	poll   time.Duration
	logger aqm.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	offs   []func()
}

func NewConnector(hook *notifications.Hook, store *board.Store, url string, poll time.Duration, logger aqm.Logger) *Connector {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Connector{
		hook:   hook,
		store:  store,
		url:    url,
		poll:   poll,
		logger: logger,
	}
}

// Start hydrates the board, connects the realtime channel and joins the
// business room. A failed initial hydration is not fatal; the poll loop
// retries it.
func (c *Connector) Start(ctx context.Context) error {
	c.store.Restore(ctx)

	if err := c.store.Hydrate(ctx); err != nil {
		c.logger.Errorf("initial hydration failed, poll loop will retry: %v", err)
	}

	offOrders := c.hook.SubscribeOrderEvents(c.store.ApplyEnvelope)
	offClosing := c.hook.Subscribe(event.TypeRoomClosing, func(env event.Envelope) {
		c.logger.Info("room closing", "event_id", env.EventID)
	})
	offMax := c.hook.Subscribe(event.TypeMaxReconnections, c.store.HandleMaxReconnections)

	runCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.cancel = cancel
	c.offs = []func(){offOrders, offClosing, offMax}
	c.mu.Unlock()

	if err := c.hook.Connect(ctx, c.url); err != nil {
		c.logger.Errorf("realtime connection failed, reconnection scheduled: %v", err)
	} else {
		c.hook.JoinBusinessRoom(c.store.BusinessID())
	}

	go c.loop(runCtx)

	c.logger.Info("board connector started", "business_id", c.store.BusinessID())
	return nil
}

// Stop unsubscribes, disconnects and halts the poll loop.
func (c *Connector) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	offs := c.offs
	c.cancel = nil
	c.offs = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, off := range offs {
		off()
	}
	c.hook.Disconnect()

	c.logger.Info("board connector stopped")
	return nil
}

// loop drives the periodic hydration and mirrors transport stats into
// the store. Polling only runs while the board has auto refresh on.
func (c *Connector) loop(ctx context.Context) {
	pollTicker := time.NewTicker(c.poll)
	defer pollTicker.Stop()
	statsTicker := time.NewTicker(time.Second)
	defer statsTicker.Stop()

	wasConnected := c.hook.Stats().Connected
	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			if !c.store.Filters().AutoRefresh {
				continue
			}
			hctx, cancel := context.WithTimeout(ctx, 15*time.Second)
			if err := c.store.Hydrate(hctx); err != nil {
				c.logger.Errorf("periodic hydration failed: %v", err)
			}
			cancel()
		case <-statsTicker.C:
			stats := c.hook.Stats()
			c.store.SetConnectionState(stats.Connected, stats.ReconnectionAttempts)

			// A fresh connection may have missed events while down;
			// rejoin the room and reconcile.
			if stats.Connected && !wasConnected {
				c.hook.JoinBusinessRoom(c.store.BusinessID())
				hctx, cancel := context.WithTimeout(ctx, 15*time.Second)
				if err := c.store.Hydrate(hctx); err != nil {
					c.logger.Errorf("post-reconnect hydration failed: %v", err)
				}
				cancel()
			}
			wasConnected = stats.Connected
		}
	}
}
