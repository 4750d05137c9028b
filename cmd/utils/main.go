package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aquamarinepk/aqm"

	"github.com/comandaclub/boardsync/cmd/utils/internal/commands"
)

const (
	appName    = "boardsync-utils"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	config, err := aqm.LoadConfig("BOARDSYNC", os.Args[2:])
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logLevel, _ := config.GetString("log.level")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := aqm.NewLogger(logLevel)

	ctx := context.Background()
	command := os.Args[1]

	switch command {
	case "show-snapshot":
		if err := commands.ShowSnapshot(ctx, config, logger); err != nil {
			log.Fatalf("Show snapshot failed: %v", err)
		}

	case "clear-snapshot":
		if err := commands.ClearSnapshot(ctx, config, logger); err != nil {
			log.Fatalf("Clear snapshot failed: %v", err)
		}
		logger.Info("Snapshot cleared")

	case "seed-demo":
		if err := commands.SeedDemo(ctx, config, logger); err != nil {
			log.Fatalf("Demo seeding failed: %v", err)
		}
		logger.Info("Demo board seeded")

	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - boardsync maintenance utilities

Usage:
  utils <command> [options]

Commands:
  show-snapshot    Print the persisted board snapshot
  clear-snapshot   Delete the persisted board snapshot
  seed-demo        Seed a demo board into the snapshot store
  version          Print version
  help             Show this help

Options are the same flags the service accepts, e.g.:
  utils show-snapshot --snapshot.path data/boardsync.db
`, appName)
}
