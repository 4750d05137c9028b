package app

import (
	"context"
	"strconv"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/middleware"

	"github.com/comandaclub/boardsync/internal/auth"
	"github.com/comandaclub/boardsync/internal/board"
	"github.com/comandaclub/boardsync/internal/events"
	"github.com/comandaclub/boardsync/internal/notifications"
	"github.com/comandaclub/boardsync/internal/ordersapi"
	"github.com/comandaclub/boardsync/internal/snapshot"
	"github.com/comandaclub/boardsync/internal/sse"
)

const (
	AppName    = "boardsync"
	AppVersion = "0.1.0"
)

// App wires the board service: token provider, realtime client,
// reconciliation store, snapshot persistence and the HTTP surface.
type App struct {
	config *aqm.Config
	logger aqm.Logger
	micro  *aqm.Micro

	snapshots *snapshot.Store
}

func New(config *aqm.Config, logger aqm.Logger) (*App, error) {
	return &App{
		config: config,
		logger: logger,
	}, nil
}

// Initialize builds every component and assembles the micro service.
func (a *App) Initialize(ctx context.Context) error {
	backendURL, _ := a.config.GetString("backend.url")
	if backendURL == "" {
		backendURL = "http://localhost:3000"
	}

	wsURL, _ := a.config.GetString("backend.ws.url")
	if wsURL == "" {
		wsURL = backendURL
	}

	refreshURL, _ := a.config.GetString("auth.refresh.url")
	if refreshURL == "" {
		refreshURL = backendURL + "/auth/refresh"
	}

	initialToken, _ := a.config.GetString("auth.token")
	tokens := auth.NewProvider(refreshURL, initialToken, a.logger)

	businessID := 0
	if raw, _ := a.config.GetString("board.business.id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			a.logger.Errorf("invalid board.business.id %q, board stays empty: %v", raw, err)
		} else {
			businessID = id
		}
	}

	snapshotPath, _ := a.config.GetString("snapshot.path")
	if snapshotPath == "" {
		snapshotPath = "data/boardsync.db"
	}
	snapshots, err := snapshot.New(snapshotPath, a.logger)
	if err != nil {
		return err
	}
	a.snapshots = snapshots

	ordersClient := aqm.NewServiceClient(backendURL)
	orders := ordersapi.NewDataAccess(ordersClient, a.logger)

	store := board.NewStore(orders, snapshots, businessID, a.logger)

	client := notifications.NewClient(tokens, a.logger)
	hook := notifications.NewHook(client)

	pollInterval := 60 * time.Second
	if raw, _ := a.config.GetString("board.poll.interval"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			pollInterval = parsed
		} else {
			a.logger.Errorf("invalid board.poll.interval %q, using %s", raw, pollInterval)
		}
	}

	connector := events.NewConnector(hook, store, wsURL, pollInterval, a.logger)

	handler := sse.NewHandler(store, hook, a.logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger: a.logger,
	})

	snapshotLifecycle := aqm.LifecycleHooks{
		OnStop: func(context.Context) error { return snapshots.Close() },
	}

	options := []aqm.Option{
		aqm.WithConfig(a.config),
		aqm.WithLogger(a.logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(connector, snapshotLifecycle),
		aqm.WithHealthChecks(AppName),
	}

	a.micro = aqm.NewMicro(options...)
	return nil
}

// Run starts the application and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}
