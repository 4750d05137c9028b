package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/comandaclub/boardsync/pkg/enums/boardstatus"
	"github.com/comandaclub/boardsync/pkg/enums/orderstatus"
	"github.com/comandaclub/boardsync/pkg/event"
)

var (
	// ErrNoBusiness means the store has no business selected; the board
	// stays empty until one is set.
	ErrNoBusiness = errors.New("no business selected")

	// ErrBackwardMove means the requested column is not ahead of the
	// ticket's current one. Pending is never a valid target.
	ErrBackwardMove = errors.New("orders only move forward on the board")

	// ErrUnknownTicket means the order is not on the board.
	ErrUnknownTicket = errors.New("ticket not on the board")
)

// OrdersAPI is the slice of the backend the store talks to.
type OrdersAPI interface {
	GetKitchenBoard(ctx context.Context, businessID int) ([]RawOrder, error)
	UpdateKitchenOrderStatus(ctx context.Context, orderID int, status orderstatus.Status) error
}

// Persister saves and restores board state across restarts.
type Persister interface {
	Save(ctx context.Context, state State) error
	Load(ctx context.Context) (State, bool, error)
}

// State is the persisted shape of the board.
type State struct {
	Tickets []Ticket `json:"tickets"`
	Filters Filters  `json:"filters"`
}

// Filters narrows what FilteredTickets returns. Statuses maps column
// names to visibility; a missing entry means visible.
type Filters struct {
	Search       string          `json:"search"`
	OnlyPriority bool            `json:"onlyPriority"`
	Statuses     map[string]bool `json:"statuses"`
	SoundOn      bool            `json:"soundOn"`
	AutoRefresh  bool            `json:"autoRefresh"`
}

// DefaultFilters shows every column with sound and auto refresh on.
func DefaultFilters() Filters {
	statuses := make(map[string]bool, len(boardstatus.All))
	for _, s := range boardstatus.All {
		statuses[s.Name] = true
	}
	return Filters{
		Statuses:    statuses,
		SoundOn:     true,
		AutoRefresh: true,
	}
}

// Store is the kitchen board's single source of truth. It reconciles
// three inputs: full hydrations from the backend, incremental order
// events, and operator moves. Moves are optimistic; the authoritative
// state always comes back through the next hydration.
type Store struct {
	api     OrdersAPI
	persist Persister
	logger  aqm.Logger

	mu         sync.RWMutex
	businessID int
	tickets    []Ticket
	filters    Filters
	loading    bool
	lastErr    error
	lastSyncAt time.Time

	connected            bool
	connectionLost       bool
	reconnectionAttempts int

	watchers map[int]chan struct{}
	nextID   int

	// resync runs after a move settles; tests override it to observe
	// reconciliation without spawning goroutines.
	resync func()
}

// NewStore creates an empty board for the given business. persist may
// be nil.
func NewStore(api OrdersAPI, persist Persister, businessID int, logger aqm.Logger) *Store {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	s := &Store{
		api:        api,
		persist:    persist,
		logger:     logger,
		businessID: businessID,
		filters:    DefaultFilters(),
		watchers:   make(map[int]chan struct{}),
	}
	s.resync = func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.Hydrate(ctx); err != nil {
				s.logger.Errorf("resync after move failed: %v", err)
			}
		}()
	}
	return s
}

// Restore seeds the board from the persisted snapshot, if one exists.
// Called once on startup, before the first hydration.
func (s *Store) Restore(ctx context.Context) {
	if s.persist == nil {
		return
	}
	state, ok, err := s.persist.Load(ctx)
	if err != nil {
		s.logger.Errorf("loading board snapshot: %v", err)
		return
	}
	if !ok {
		return
	}

	s.mu.Lock()
	s.tickets = sortTickets(state.Tickets)
	if state.Filters.Statuses != nil {
		s.filters = state.Filters
	}
	s.mu.Unlock()

	s.logger.Info("board restored from snapshot", "tickets", len(state.Tickets))
	s.notify()
}

// Hydrate replaces the whole board with the backend's current truth.
// Without a business the board empties out and the error is recorded;
// no request is made.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	businessID := s.businessID
	if businessID == 0 {
		s.tickets = nil
		s.loading = false
		s.lastErr = ErrNoBusiness
		s.mu.Unlock()
		s.logger.Info("hydration skipped, no business selected")
		s.notify()
		return ErrNoBusiness
	}
	s.loading = true
	s.mu.Unlock()
	s.notify()

	orders, err := s.api.GetKitchenBoard(ctx, businessID)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.lastErr = err
		s.mu.Unlock()
		s.logger.Errorf("board hydration failed: %v", err)
		s.notify()
		return fmt.Errorf("fetching kitchen board: %w", err)
	}

	tickets := make([]Ticket, 0, len(orders))
	for _, o := range orders {
		if o.Status.Name == orderstatus.Statuses.Cancelado.Name {
			continue
		}
		if t, ok := MapOrderToTicket(o); ok {
			tickets = append(tickets, t)
		}
	}

	s.mu.Lock()
	s.tickets = sortTickets(tickets)
	s.loading = false
	s.lastErr = nil
	s.lastSyncAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("board hydrated", "tickets", len(tickets))
	s.notify()
	s.snapshot()
	return nil
}

// ApplyEnvelope folds one order event into the board: an upsert keyed
// by order ID. Undecodable payloads and orders without an ID are
// dropped, the board keeps its current state.
func (s *Store) ApplyEnvelope(env event.Envelope) {
	var order RawOrder
	if err := json.Unmarshal(env.Payload, &order); err != nil {
		s.logger.Info("undecodable order payload, ignoring", "event_id", env.EventID, "error", err)
		return
	}

	ticket, ok := MapOrderToTicket(order)
	if !ok {
		s.logger.Info("order event without id, ignoring", "event_id", env.EventID)
		return
	}

	s.mu.Lock()
	s.upsertLocked(ticket)
	s.mu.Unlock()

	s.logger.Debug("applied order event", "order_id", ticket.ID, "status", ticket.RawStatus.Name)
	s.notify()
	s.snapshot()
}

// upsertLocked replaces the ticket with the same ID or appends it, then
// restores the board ordering. Must be called with s.mu held.
func (s *Store) upsertLocked(ticket Ticket) {
	replaced := false
	for i := range s.tickets {
		if s.tickets[i].ID == ticket.ID {
			s.tickets[i] = ticket
			replaced = true
			break
		}
	}
	if !replaced {
		s.tickets = append(s.tickets, ticket)
	}
	s.tickets = sortTickets(s.tickets)
}

// Move advances an order to the target column. The front status updates
// immediately; the backend is then walked through every intermediate
// status one step at a time, in order, and the raw status settles on the
// last step that was actually applied. Whether the walk succeeds or
// fails midway, a resync follows so the board converges on the
// backend's truth instead of guessing a rollback.
func (s *Store) Move(ctx context.Context, orderID int, target boardstatus.Status) error {
	rawTarget, ok := target.RawTarget()
	if !ok {
		return fmt.Errorf("%w: cannot move to %s", ErrBackwardMove, target.Name)
	}

	s.mu.Lock()
	idx := -1
	for i := range s.tickets {
		if s.tickets[i].ID == orderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: order %d", ErrUnknownTicket, orderID)
	}

	current := s.tickets[idx].RawStatus
	steps := orderstatus.ForwardSequence(current, rawTarget)
	if len(steps) == 0 {
		s.mu.Unlock()
		s.logger.Debug("move is a no-op", "order_id", orderID, "target", target.Name)
		return nil
	}

	s.tickets[idx].Status = target
	s.tickets[idx].UpdatedAt = time.Now()
	s.tickets = sortTickets(s.tickets)
	s.mu.Unlock()

	s.notify()

	var walkErr error
	var applied orderstatus.Status
	for _, step := range steps {
		if err := s.api.UpdateKitchenOrderStatus(ctx, orderID, step); err != nil {
			walkErr = fmt.Errorf("advancing order %d to %s: %w", orderID, step.Name, err)
			s.logger.Errorf("status walk interrupted: %v", walkErr)
			break
		}
		applied = step
		s.logger.Debug("order advanced", "order_id", orderID, "status", step.Name)
	}

	s.mu.Lock()
	if !applied.IsZero() {
		for i := range s.tickets {
			if s.tickets[i].ID == orderID {
				s.tickets[i].RawStatus = applied
				break
			}
		}
	}
	if walkErr != nil {
		s.lastErr = walkErr
	}
	s.mu.Unlock()

	s.notify()
	s.resync()
	return walkErr
}

// HandleMaxReconnections marks the board as offline for good. The
// tickets stay visible; only the connection state and error change.
func (s *Store) HandleMaxReconnections(env event.Envelope) {
	var payload event.MaxReconnectionsPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		payload.Message = "connection lost"
	}

	s.mu.Lock()
	s.connected = false
	s.connectionLost = true
	s.lastErr = errors.New(payload.Message)
	s.mu.Unlock()

	s.logger.Error("realtime connection lost permanently", "attempts", payload.Attempts)
	s.notify()
}

// SetConnectionState mirrors the transport's connection statistics.
func (s *Store) SetConnectionState(connected bool, attempts int) {
	s.mu.Lock()
	changed := s.connected != connected || s.reconnectionAttempts != attempts
	s.connected = connected
	s.reconnectionAttempts = attempts
	if connected {
		s.connectionLost = false
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// SetBusinessID switches the board to another business. The next
// hydration loads it.
func (s *Store) SetBusinessID(id int) {
	s.mu.Lock()
	s.businessID = id
	s.mu.Unlock()
}

func (s *Store) BusinessID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.businessID
}

// Tickets returns a copy of the board in display order.
func (s *Store) Tickets() []Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Ticket, len(s.tickets))
	copy(out, s.tickets)
	return out
}

// Ticket returns one order's card, if present.
func (s *Store) Ticket(orderID int) (Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tickets {
		if t.ID == orderID {
			return t, true
		}
	}
	return Ticket{}, false
}

// FilteredTickets applies the current filters on top of the board
// ordering.
func (s *Store) FilteredTickets() []Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		if s.filters.OnlyPriority && !t.Priority.Elevated() {
			continue
		}
		if visible, ok := s.filters.Statuses[t.Status.Name]; ok && !visible {
			continue
		}
		if !matchesSearch(t, s.filters.Search) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesSearch(t Ticket, search string) bool {
	search = strings.TrimSpace(strings.ToLower(search))
	if search == "" {
		return true
	}
	if strings.Contains(strings.ToLower(t.Code), search) ||
		strings.Contains(strings.ToLower(t.Table), search) ||
		strings.Contains(strings.ToLower(t.Customer), search) {
		return true
	}
	for _, item := range t.Items {
		if strings.Contains(strings.ToLower(item.Name), search) {
			return true
		}
	}
	return false
}

// SetFilters replaces the current filters.
func (s *Store) SetFilters(f Filters) {
	if f.Statuses == nil {
		f.Statuses = DefaultFilters().Statuses
	}
	s.mu.Lock()
	s.filters = f
	s.mu.Unlock()
	s.notify()
	s.snapshot()
}

func (s *Store) Filters() Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// Loading reports whether a hydration is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last hydration or connection error, nil when healthy.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Connected reports the mirrored transport state.
func (s *Store) Connected() (bool, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected, s.reconnectionAttempts
}

// ConnectionLost reports whether the transport gave up for good. It
// stays set until the next successful reconnect.
func (s *Store) ConnectionLost() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectionLost
}

// LastSyncAt returns when the board last hydrated successfully.
func (s *Store) LastSyncAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSyncAt
}

// Watch returns a channel that pulses on every board change, plus its
// cancel. The channel has a buffer of one and drops pulses a slow
// consumer has not drained.
func (s *Store) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) snapshot() {
	if s.persist == nil {
		return
	}
	s.mu.RLock()
	state := State{
		Tickets: make([]Ticket, len(s.tickets)),
		Filters: s.filters,
	}
	copy(state.Tickets, s.tickets)
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.persist.Save(ctx, state); err != nil {
		s.logger.Errorf("saving board snapshot: %v", err)
	}
}

// sortTickets orders the board by column, oldest first within each.
// The sort is stable so equal timestamps keep their arrival order.
func sortTickets(tickets []Ticket) []Ticket {
	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].rank() != tickets[j].rank() {
			return tickets[i].rank() < tickets[j].rank()
		}
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
	return tickets
}
