package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aquamarinepk/aqm"

	"github.com/comandaclub/boardsync/internal/snapshot"
)

func openSnapshot(config *aqm.Config, logger aqm.Logger) (*snapshot.Store, error) {
	path, _ := config.GetString("snapshot.path")
	if path == "" {
		path = "data/boardsync.db"
	}
	return snapshot.New(path, logger)
}

// ShowSnapshot prints the persisted board document as indented JSON.
func ShowSnapshot(ctx context.Context, config *aqm.Config, logger aqm.Logger) error {
	store, err := openSnapshot(config, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	state, ok, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no snapshot stored")
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}

// ClearSnapshot deletes the persisted board document.
func ClearSnapshot(ctx context.Context, config *aqm.Config, logger aqm.Logger) error {
	store, err := openSnapshot(config, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Clear(ctx)
}
