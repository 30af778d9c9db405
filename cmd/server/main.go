package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/authz"
	"github.com/stanstork/noticeboard/internal/config"
	"github.com/stanstork/noticeboard/internal/handlers"
	"github.com/stanstork/noticeboard/internal/middleware"
	"github.com/stanstork/noticeboard/internal/migration"
	"github.com/stanstork/noticeboard/internal/notification"
	"github.com/stanstork/noticeboard/internal/repository"
	"github.com/stanstork/noticeboard/internal/routes"
	"github.com/stanstork/noticeboard/internal/source"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config        *config.Config
	logger        zerolog.Logger
	notifications notification.Service
	closers       []io.Closer
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg, err := config.Load(os.Getenv("NOTICEBOARD_CONFIG"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info")
	}

	app := &application{config: cfg, logger: logger}
	defer app.close()

	store, err := app.openStateStore()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open state store")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	sources, err := source.Build(ctx, cfg.Sources, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure notification sources")
	}
	app.closers = append(app.closers, sources)

	pipelineCfg, err := notification.PipelineConfigFrom(cfg.Pipeline)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid pipeline configuration")
	}
	app.notifications, err = notification.NewPipeline(sources.Providers, store, pipelineCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build notification pipeline")
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.AllowedOrigins),
		h.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, logger)

	logger.Info().Msg("Application terminated.")
}

// openStateStore connects the configured state backend.
func (app *application) openStateStore() (notification.StateStore, error) {
	cfg := app.config.StateStore
	switch cfg.Driver {
	case config.StateStorePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db)
		if err := db.Ping(); err != nil {
			return nil, err
		}
		// Run database migrations.
		if err := migration.RunMigrations(db, app.logger); err != nil {
			return nil, err
		}
		return repository.NewStateRepository(db), nil

	case config.StateStoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		app.closers = append(app.closers, rdb)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		return repository.NewRedisStateRepository(rdb), nil
	}

	app.logger.Warn().Msg("Using in-memory state store; state is lost on restart")
	return repository.NewMemoryStateRepository(), nil
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	notificationHandler := handlers.NewNotificationHandler(app.notifications, logger)
	return routes.NewRouter(notificationHandler, authz.JWTMiddleware(app.config.JWTSecret))
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger) {
	server := &http.Server{
		Addr:              ":" + app.config.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}
}

// close releases connections in reverse order of opening.
func (app *application) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error().Err(err).Msg("Failed to close resource")
		}
	}
}
