package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/urfave/cli/v2"

	"github.com/skycomb-go/thermaltrack/internal/api"
	"github.com/skycomb-go/thermaltrack/internal/config"
	"github.com/skycomb-go/thermaltrack/internal/core"
	"github.com/skycomb-go/thermaltrack/internal/database"
	"github.com/skycomb-go/thermaltrack/internal/ingest"
	"github.com/skycomb-go/thermaltrack/internal/runctl"
)

func main() {
	app := &cli.App{
		Name:  "thermaltrack",
		Usage: "thermal airborne object tracking and geo-location",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "path to the YAML configuration document",
				Required: true,
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			resumeCommand(),
			inspectCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("thermaltrack exited with an error", "error", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "process a frame directory against a flight log and elevation grid from frame 0",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "frames", Usage: "directory of orig/thresh PNG pairs", Required: true},
			&cli.StringFlag{Name: "flight-log", Usage: "JSON flight log (steps + legs)", Required: true},
			&cli.StringFlag{Name: "elevation-grid", Usage: "JSON DEM/DSM grid", Required: true},
			&cli.Float64Flag{Name: "from-s", Usage: "window start, seconds from the first frame"},
			&cli.Float64Flag{Name: "to-s", Usage: "window end, seconds from the first frame (0 = to the end)"},
			&cli.Float64Flag{Name: "gimbal-deg", Usage: "fixed camera_to_vertical_forward_deg", Value: 0},
		},
		Action: func(cCtx *cli.Context) error { return doRun(cCtx, false) },
	}
}

func resumeCommand() *cli.Command {
	return &cli.Command{
		Name:  "resume",
		Usage: "continue a previously checkpointed run against a (possibly extended) input set",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "frames", Usage: "directory of orig/thresh PNG pairs", Required: true},
			&cli.StringFlag{Name: "flight-log", Usage: "JSON flight log (steps + legs)", Required: true},
			&cli.StringFlag{Name: "elevation-grid", Usage: "JSON DEM/DSM grid", Required: true},
			&cli.Float64Flag{Name: "from-s", Usage: "window start, seconds from the first frame"},
			&cli.Float64Flag{Name: "to-s", Usage: "window end, seconds from the first frame (0 = to the end)"},
			&cli.Float64Flag{Name: "gimbal-deg", Usage: "fixed camera_to_vertical_forward_deg", Value: 0},
		},
		Action: func(cCtx *cli.Context) error { return doRun(cCtx, true) },
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "serve the read-only catalog API over a previously persisted run, without processing any frames",
		Action: func(cCtx *cli.Context) error {
			cfg, err := config.Load(cCtx.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cfg)

			db, store, closeDB, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			ctx, cancel := signal.NotifyContext(cCtx.Context, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serveUntilSignal(ctx, cfg, logger, store, db, nil)
		},
	}
}

func doRun(cCtx *cli.Context, resume bool) error {
	cfg, err := config.Load(cCtx.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	db, store, closeDB, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	// Frame cadence is a property of the input, not the config document;
	// thermaltrack's thermal payloads run a fixed 10fps capture rate.
	const frameMS = 100
	runCfg := runctl.RunConfig{
		FrameMS: frameMS,
		FromS:   cCtx.Float64("from-s"),
		ToS:     cCtx.Float64("to-s"),
	}

	frames, err := ingest.OpenFrameDir(cCtx.String("frames"), runCfg.FrameMS, cCtx.Float64("gimbal-deg"))
	if err != nil {
		return fmt.Errorf("open frame dir: %w", err)
	}
	poses, err := ingest.LoadFlightLog(cCtx.String("flight-log"))
	if err != nil {
		return fmt.Errorf("load flight log: %w", err)
	}
	ground, err := ingest.LoadElevationGrid(cCtx.String("elevation-grid"))
	if err != nil {
		return fmt.Errorf("load elevation grid: %w", err)
	}

	eventBus, err := core.NewEventBus(core.EventBusConfig{
		Host: "127.0.0.1",
		Port: cfg.System.NATSPort,
	}, logger)
	if err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	defer eventBus.Stop()

	hub := api.NewHub()
	go hub.Run()
	subscribeHooksToHub(eventBus, hub, logger)

	ctx, cancel := signal.NotifyContext(cCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps := runctl.Deps{
		Frames: frames,
		Poses:  poses,
		Ground: ground,
		Store:  store,
		Hooks:  eventBus,
		Logger: logger,
	}
	layers := runctl.LayerConfigsFrom(cfg)

	var controller *runctl.Controller
	if resume {
		catalog, err := store.LoadCatalog(ctx)
		if err != nil {
			return fmt.Errorf("load catalog for resume: %w", err)
		}
		controller = runctl.Resume(runCfg, layers, deps, catalog)
	} else {
		controller = runctl.New(runCfg, layers, deps)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- serveUntilSignal(ctx, cfg, logger, store, db, hub)
	}()

	logger.Info("starting run", "frames", frames.Len())
	if err := controller.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	logger.Info("run finished", "blocks", controller.Catalog().Blocks.Len())

	cancel()
	return <-serverErrCh
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.System.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func openStore(cfg *config.Config) (*database.DB, *database.Store, func(), error) {
	dbCfg := database.DefaultConfig(cfg.System.DataPath)
	if cfg.System.Database.Path != "" {
		dbCfg.Path = cfg.System.Database.Path
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}

	migrator := database.NewMigrator(db)
	if err := migrator.Run(context.Background()); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store := database.NewStore(db)
	return db, store, func() { _ = db.Close() }, nil
}

// subscribeHooksToHub fans every run-hook subject out to websocket clients,
// letting an external test harness watch a run live (spec.md §4.5's hook
// contract, consumed here rather than by another in-process plugin).
func subscribeHooksToHub(eventBus *core.EventBus, hub *api.Hub, logger *slog.Logger) {
	subjects := []string{
		core.SubjectRunStart,
		core.SubjectIntervalStart,
		core.SubjectLegStartBefore,
		core.SubjectLegStartAfter,
		core.SubjectLegEndBefore,
		core.SubjectLegEndAfter,
		core.SubjectIntervalEnd,
		core.SubjectRunEnd,
	}
	broadcaster := api.NewHubBroadcaster(hub)
	for _, subject := range subjects {
		subject := subject
		if _, err := eventBus.SubscribeJSON(subject, func(evt interface{}) {
			broadcaster.BroadcastToTopic(subject, evt)
		}); err != nil {
			logger.Warn("failed to subscribe hook to websocket hub", "subject", subject, "error", err)
		}
	}
}

// serveUntilSignal runs the read-only catalog API and websocket stream
// until ctx is cancelled (by a run finishing, or by Ctrl+C).
func serveUntilSignal(ctx context.Context, cfg *config.Config, logger *slog.Logger, store *database.Store, db *database.DB, hub *api.Hub) error {
	if hub == nil {
		hub = api.NewHub()
		go hub.Run()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	r.Get("/ws", hub.HandleWebSocket)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := db.Health(req.Context()); err != nil {
			http.Error(w, "database unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Mount("/api/v1/catalog", api.NewCatalogHandler(store).Routes())

	addr := fmt.Sprintf(":%d", cfg.System.APIPort)
	server := &http.Server{Addr: addr, Handler: r}

	serveErrCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrCh <- err
			return
		}
		serveErrCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErrCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
