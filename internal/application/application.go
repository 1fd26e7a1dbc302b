package application

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/eugenenazirov/simserver/internal/accesslog"
	"github.com/eugenenazirov/simserver/internal/api"
	"github.com/eugenenazirov/simserver/internal/config"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	sink    *accesslog.Sink
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the application with all dependencies from the provided
// configuration: the access-log sink is opened (creating the log directory
// if needed), the handler captures the config snapshot, and the HTTP server
// is built but not yet bound.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	sink, err := accesslog.Open(cfg.LogFile, accesslog.Options{
		Format:   cfg.LogFormat,
		Rotate:   cfg.Rotate,
		MaxSize:  cfg.MaxSize,
		MaxFiles: cfg.MaxFiles,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open access log: %w", err)
	}

	handler := api.NewHandler(cfg)
	router := api.NewRouter(handler, logger, sink,
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		sink:    sink,
		handler: handler,
		router:  router,
		logger:  logger,
		server:  NewServer(cfg, router),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Close releases the access-log sink. Call after the server has stopped.
func (a *App) Close() error {
	if err := a.sink.Close(); err != nil {
		return fmt.Errorf("close access log: %w", err)
	}
	return nil
}
