package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"

	"github.com/comandaclub/boardsync/internal/board"
	"github.com/comandaclub/boardsync/internal/notifications"
	"github.com/comandaclub/boardsync/pkg/enums/boardstatus"
)

const (
	MaxBodyBytes      = 1 << 20
	keepaliveInterval = 30 * time.Second
)

// Handler exposes the board over HTTP: snapshot endpoints for the
// current state and an SSE stream that pulses on every change.
type Handler struct {
	store  *board.Store
	hook   *notifications.Hook
	logger aqm.Logger
	tlm    *telemetry.HTTP
}

func NewHandler(store *board.Store, hook *notifications.Hook, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{
		store:  store,
		hook:   hook,
		logger: logger,
		tlm:    telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/board", func(r chi.Router) {
		r.Get("/tickets", h.ListTickets)
		r.Get("/tickets/{id}", h.GetTicket)
		r.Patch("/tickets/{id}/move", h.MoveTicket)
		r.Get("/stats", h.GetStats)
		r.Get("/filters", h.GetFilters)
		r.Put("/filters", h.PutFilters)
		r.Post("/refresh", h.Refresh)
		r.Get("/stream", h.Stream)
	})
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListTickets")
	defer finish()

	tickets := h.store.FilteredTickets()
	if r.URL.Query().Get("all") == "true" {
		tickets = h.store.Tickets()
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"tickets": tickets,
	}, nil)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetTicket")
	defer finish()

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	ticket, ok := h.store.Ticket(id)
	if !ok {
		aqm.RespondError(w, http.StatusNotFound, "Order not on the board")
		return
	}

	aqm.Respond(w, http.StatusOK, ticket, nil)
}

func (h *Handler) MoveTicket(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.MoveTicket")
	defer finish()
	log := h.log(r)

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	target := boardstatus.ByName(body.Status)
	if target == nil {
		aqm.RespondError(w, http.StatusBadRequest, "Unknown board status")
		return
	}

	if err := h.store.Move(r.Context(), id, *target); err != nil {
		log.Errorf("cannot move order %d: %v", id, err)
		switch {
		case isClientMoveError(err):
			aqm.RespondError(w, http.StatusConflict, err.Error())
		default:
			aqm.RespondError(w, http.StatusBadGateway, "Could not update order status")
		}
		return
	}

	ticket, _ := h.store.Ticket(id)
	aqm.Respond(w, http.StatusOK, ticket, nil)
}

func isClientMoveError(err error) bool {
	return errors.Is(err, board.ErrBackwardMove) || errors.Is(err, board.ErrUnknownTicket)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetStats")
	defer finish()

	stats := h.hook.Stats()
	connected, attempts := h.store.Connected()

	body := map[string]interface{}{
		"connected":            connected,
		"connectionLost":       h.store.ConnectionLost(),
		"reconnectionAttempts": attempts,
		"processedEvents":      stats.ProcessedEvents,
		"loading":              h.store.Loading(),
		"tickets":              len(h.store.Tickets()),
	}
	if last := h.store.LastSyncAt(); !last.IsZero() {
		body["lastSyncAt"] = last
	}
	if err := h.store.Err(); err != nil {
		body["error"] = err.Error()
	}

	aqm.Respond(w, http.StatusOK, body, nil)
}

func (h *Handler) GetFilters(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetFilters")
	defer finish()
	aqm.Respond(w, http.StatusOK, h.store.Filters(), nil)
}

func (h *Handler) PutFilters(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.PutFilters")
	defer finish()

	var filters board.Filters
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&filters); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.store.SetFilters(filters)
	aqm.Respond(w, http.StatusOK, h.store.Filters(), nil)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Refresh")
	defer finish()
	log := h.log(r)

	if err := h.store.Hydrate(r.Context()); err != nil {
		log.Errorf("manual refresh failed: %v", err)
		aqm.RespondError(w, http.StatusBadGateway, "Could not refresh the board")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"tickets": h.store.FilteredTickets(),
	}, nil)
}

// Stream pushes a board-update event with the filtered board every time
// the store changes, plus a periodic keepalive comment.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		aqm.RespondError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	changes, cancel := h.store.Watch()
	defer cancel()

	h.logger.Info("new board stream subscriber")

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	h.writeBoardEvent(w)
	flusher.Flush()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("board stream subscriber disconnected")
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case <-changes:
			h.writeBoardEvent(w)
			flusher.Flush()
		}
	}
}

func (h *Handler) writeBoardEvent(w http.ResponseWriter) {
	payload, err := json.Marshal(map[string]interface{}{
		"tickets": h.store.FilteredTickets(),
	})
	if err != nil {
		h.logger.Errorf("cannot encode board update: %v", err)
		return
	}
	fmt.Fprintf(w, "event: board-update\n")
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
