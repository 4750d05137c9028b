package notifications

import (
	"context"
	"sync"

	"github.com/comandaclub/boardsync/pkg/event"
)

// Hook is the subscription surface handed to consumers. It wraps the
// shared client so a consumer can subscribe without ever touching
// subscription IDs: Subscribe returns the matching unsubscribe closure.
type Hook struct {
	client *Client
}

func NewHook(client *Client) *Hook {
	return &Hook{client: client}
}

// Subscribe registers cb for eventType and returns its unsubscribe
// function. Calling it more than once is safe; only the first call
// removes the subscription.
func (h *Hook) Subscribe(eventType string, cb EventCallback) func() {
	id := h.client.On(eventType, cb)
	var once sync.Once
	return func() {
		once.Do(func() {
			h.client.Off(eventType, id)
		})
	}
}

// SubscribeOrderEvents wires cb to both order lifecycle events and
// returns a single unsubscribe covering both.
func (h *Hook) SubscribeOrderEvents(cb EventCallback) func() {
	offCreated := h.Subscribe(event.TypeOrderCreated, cb)
	offStatus := h.Subscribe(event.TypeOrderStatusChanged, cb)
	return func() {
		offCreated()
		offStatus()
	}
}

func (h *Hook) Connect(ctx context.Context, url string) error {
	return h.client.Connect(ctx, url)
}

func (h *Hook) Disconnect() {
	h.client.Disconnect()
}

func (h *Hook) JoinBusinessRoom(id int) {
	h.client.JoinBusinessRoom(id)
}

func (h *Hook) JoinOrderRoom(id int) {
	h.client.JoinOrderRoom(id)
}

func (h *Hook) Stats() Stats {
	return h.client.Stats()
}
