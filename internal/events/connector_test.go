package events

import (
	"context"
	"testing"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/comandaclub/boardsync/internal/board"
	"github.com/comandaclub/boardsync/internal/notifications"
)

type stubTokens struct{}

func (stubTokens) Token(ctx context.Context) (string, error) { return "test-token", nil }

func newTestConnector(store *board.Store) *Connector {
	client := notifications.NewClient(stubTokens{}, aqm.NewNoopLogger())
	hook := notifications.NewHook(client)
	return NewConnector(hook, store, "http://localhost:0", time.Minute, aqm.NewNoopLogger())
}

func TestNewConnectorDefaults(t *testing.T) {
	store := board.NewStore(nil, nil, 0, aqm.NewNoopLogger())
	client := notifications.NewClient(stubTokens{}, aqm.NewNoopLogger())
	hook := notifications.NewHook(client)

	c := NewConnector(hook, store, "http://localhost:0", 0, nil)
	if c == nil {
		t.Fatal("NewConnector() returned nil")
	}
	if c.poll != defaultPollInterval {
		t.Errorf("poll = %s, want %s", c.poll, defaultPollInterval)
	}
}

func TestConnectorStopWithoutStart(t *testing.T) {
	store := board.NewStore(nil, nil, 0, aqm.NewNoopLogger())
	c := newTestConnector(store)

	// Should not panic
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
