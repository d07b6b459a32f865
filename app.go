package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"

	"livepage/internal/capabilities"
	"livepage/internal/config"
	"livepage/internal/database"
	"livepage/internal/events"
	"livepage/internal/httpapi"
	"livepage/internal/llm/client"
	"livepage/internal/services"
)

// App owns the process-wide resources and their lifecycle.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	db       *gorm.DB
	catalog  services.ModelCatalogService
	keys     *services.KeyringService
	stream   *services.EventEmitterService
	services *services.Services
	server   *http.Server
}

func NewApp(cfg config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// startup opens the database and wires every service. Nothing is served yet.
func (a *App) startup(ctx context.Context) error {
	level, err := database.ParseLogLevel(a.cfg.Database.LogLevel)
	if err != nil {
		return err
	}
	db, err := database.Init(database.Config{
		Path:     a.cfg.Database.Path,
		LogLevel: level,
		Logger:   a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db

	a.catalog = services.NewModelCatalogService(services.CatalogOverrides{
		DefaultModel:     a.cfg.Gateway.DefaultModel,
		FireworksBaseURL: a.cfg.Gateway.FireworksBaseURL,
	})
	if err := a.catalog.Startup(ctx); err != nil {
		return fmt.Errorf("load model catalog: %w", err)
	}

	a.keys = services.NewKeyringService(a.catalog.KeyEnvVars())
	gateway, err := services.NewGateway(a.catalog, a.keys, client.Options{
		MaxRetries:      a.cfg.Gateway.MaxRetries,
		RequestTimeout:  a.cfg.Gateway.RequestTimeout,
		InitialInterval: a.cfg.Gateway.InitialInterval,
		Logger:          a.logger.With("component", "gateway"),
	})
	if err != nil {
		return fmt.Errorf("build provider gateway: %w", err)
	}

	a.stream = services.NewEventEmitterService()
	a.stream.StartStream()

	a.services = services.NewServices(db, services.Dependencies{
		Gateway:      gateway,
		Sources:      capabilitySources(a.cfg.Capabilities),
		Emitter:      events.Multi(a.stream, events.LogEmitter{Logger: a.logger.With("component", "events")}),
		Logger:       a.logger,
		DefaultModel: a.catalog.DefaultModel(),
	})
	if err := a.services.Startup(ctx); err != nil {
		return err
	}

	a.server = &http.Server{
		Addr: a.cfg.Server.Addr,
		Handler: httpapi.NewRouter(httpapi.Config{
			Pages:      a.services.Pages,
			Transforms: a.services.Transforms,
			Models:     a.catalog,
			Events:     a.stream,
			Logger:     a.logger.With("component", "http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// serve blocks until the server stops; a graceful shutdown is not an error.
func (a *App) serve() error {
	a.logger.Info("listening", "addr", a.server.Addr)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdown drains HTTP, closes the event stream and the database.
func (a *App) shutdown(ctx context.Context) {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shut down http server", "error", err)
		}
	}
	if a.stream != nil {
		a.stream.StopStream()
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Error("failed to close database", "error", err)
		} else {
			a.logger.Info("database closed")
		}
		a.db = nil
	}
}

func capabilitySources(cfg config.CapabilitiesConfig) capabilities.Sources {
	static := &capabilities.Static{
		Theme:          cfg.Theme,
		ConnectorHints: cfg.Connectors,
		AgentHints:     cfg.Agents,
	}
	src := capabilities.Sources{
		Theme:        static,
		Connectors:   static,
		Agents:       static,
		Scripts:      static,
		Instructions: &capabilities.InstructionFile{Path: cfg.InstructionsFile, Inline: cfg.Instructions},
	}
	if cfg.ScriptsDir != "" {
		src.Scripts = &capabilities.ScriptDir{Root: cfg.ScriptsDir, Pattern: cfg.ScriptsGlob}
	}
	return src
}
