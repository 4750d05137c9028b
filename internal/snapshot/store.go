package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aquamarinepk/aqm"
	_ "modernc.org/sqlite"

	"github.com/comandaclub/boardsync/internal/board"
)

// storeName identifies the persisted document. Earlier deployments used
// the same name, which is what makes their snapshots restorable here.
const storeName = "kitchen-board-store"

// schemaVersion is the current snapshot document version. Older
// versions are normalized on load.
const schemaVersion = 2

// Store persists the board state as a single versioned JSON document in
// a local SQLite file, so a restart resumes from the last known board
// instead of an empty one.
type Store struct {
	db     *sql.DB
	logger aqm.Logger
}

// versioned wraps the board state with its document version.
type versioned struct {
	Version int         `json:"version"`
	State   board.State `json:"state"`
}

// New opens (or creates) the snapshot database at path. Parent
// directories are created as needed.
func New(path string, logger aqm.Logger) (*Store, error) {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshot schema: %w", err)
	}

	logger.Info("snapshot store initialized", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			name       TEXT PRIMARY KEY,
			version    INTEGER NOT NULL,
			document   TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save replaces the persisted board document.
func (s *Store) Save(ctx context.Context, state board.State) error {
	doc, err := json.Marshal(versioned{Version: schemaVersion, State: state})
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, version, document, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			document = excluded.document,
			updated_at = excluded.updated_at
	`, storeName, schemaVersion, string(doc))
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Load returns the persisted board state. The boolean is false when no
// snapshot exists yet. Documents from older versions are normalized
// rather than discarded.
func (s *Store) Load(ctx context.Context) (board.State, bool, error) {
	var (
		version int
		doc     string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, document FROM snapshots WHERE name = ?`, storeName,
	).Scan(&version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return board.State{}, false, nil
	}
	if err != nil {
		return board.State{}, false, fmt.Errorf("reading snapshot: %w", err)
	}

	var wrapped versioned
	if err := json.Unmarshal([]byte(doc), &wrapped); err != nil {
		s.logger.Errorf("corrupt snapshot document, starting empty: %v", err)
		return board.State{}, false, nil
	}

	state := normalize(wrapped)
	return state, true, nil
}

// Clear deletes the persisted board document.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, storeName); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// normalize upgrades documents written by older versions. Version 1
// predates persisted filters, so those get defaults; its tickets also
// lack the raw status, which is recovered from the board column.
func normalize(wrapped versioned) board.State {
	state := wrapped.State
	if state.Filters.Statuses == nil {
		state.Filters = board.DefaultFilters()
	}
	for i := range state.Tickets {
		if state.Tickets[i].Priority == "" {
			state.Tickets[i].Priority = board.PriorityNormal
		}
	}
	if wrapped.Version < 2 {
		for i := range state.Tickets {
			if state.Tickets[i].RawStatus.IsZero() {
				if raw, ok := state.Tickets[i].Status.RawTarget(); ok {
					state.Tickets[i].RawStatus = raw
				}
			}
		}
	}
	return state
}
