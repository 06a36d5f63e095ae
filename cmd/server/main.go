/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the bakery ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, optional .env)
  2. Build the logger
  3. Open the SQLite store
  4. Build the workshop and API handler
  5. Optionally load a demo scenario (-scenario)
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      Overrides HTTP_PORT
  -db        Overrides DB_PATH; ":memory:" for a throwaway database
  -scenario  Demo scenario to load at startup (resets the database)

ENVIRONMENT:
  APP_ENV, DB_PATH, HTTP_HOST, HTTP_PORT, LOG_LEVEL, COST_SCALE
  See config/config.go for defaults.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kentonium3/bake-tracker-sub018/api"
	"github.com/kentonium3/bake-tracker-sub018/config"
	"github.com/kentonium3/bake-tracker-sub018/ledger"
	"github.com/kentonium3/bake-tracker-sub018/logger"
	"github.com/kentonium3/bake-tracker-sub018/store/sqlite"
)

func main() {
	port := flag.Int("port", 0, "HTTP server port (overrides HTTP_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	scenario := flag.String("scenario", "", "demo scenario to load at startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}

	lg := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})

	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		lg.Fatal().Err(err).Str("db", cfg.DB.Path).Msg("failed to initialize database")
	}
	defer store.Close()

	engine := ledger.NewEngine()
	engine.CostScale = cfg.Ledger.CostScale
	workshop := ledger.NewWorkshop(store,
		ledger.WithLogger(lg.With().Str("component", "workshop").Logger()),
		ledger.WithEngine(engine),
	)

	handler := api.NewHandler(workshop, lg.With().Str("component", "api").Logger())
	if *scenario != "" {
		if err := handler.LoadScenarioByID(context.Background(), *scenario); err != nil {
			lg.Fatal().Err(err).Str("scenario", *scenario).Msg("failed to load scenario")
		}
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Info().Str("addr", server.Addr).Str("env", cfg.App.Env).Str("db", cfg.DB.Path).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		lg.Error().Err(err).Msg("server forced to shutdown")
		return
	}
	lg.Info().Msg("server stopped")
}
