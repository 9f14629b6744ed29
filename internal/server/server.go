package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kartoza/price-gateway/internal/api"
	"github.com/kartoza/price-gateway/internal/config"
	"github.com/kartoza/price-gateway/internal/encoding"
	"github.com/kartoza/price-gateway/internal/features"
	"github.com/kartoza/price-gateway/internal/history"
	"github.com/kartoza/price-gateway/internal/inference"
	"github.com/kartoza/price-gateway/internal/metrics"
	"github.com/kartoza/price-gateway/internal/nn"
)

// Server holds all the components for the gateway
type Server struct {
	cfg          config.Config
	logger       *zap.Logger
	httpServer   *http.Server
	router       *mux.Router
	metrics      *metrics.Metrics
	registry     *encoding.Registry
	model        *nn.Adapter
	coordinator  *inference.Coordinator
	historyStore *history.Store
}

// New creates a new Server with all components initialized. A missing model
// or history database degrades the server instead of failing it.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		router:  mux.NewRouter(),
		metrics: metrics.New(),
	}

	s.registry = encoding.NewDefaultRegistry(
		encoding.WithFallbackObserver(func(dim encoding.Dimension, raw string) {
			s.metrics.ObserveFallback(string(dim))
			logger.Debug("Unknown category, using default code",
				zap.String("dimension", string(dim)),
				zap.String("value", raw),
			)
		}),
	)

	// Load the model once; a failed load stays failed until restart
	s.model = nn.Load(cfg.ModelPath, logger)
	s.metrics.SetModelAvailable(s.model.Available())

	s.coordinator = inference.NewCoordinator(
		features.NewAssembler(s.registry),
		s.model,
		logger,
		inference.WithRecorder(s.metrics),
	)

	if cfg.HistoryEnabled() {
		store, err := history.Open(ctx, cfg.HistoryDriver, cfg.HistoryDSN)
		if err != nil {
			logger.Warn("Prediction history not available", zap.Error(err))
		} else {
			s.historyStore = store
		}
	}

	s.setupRoutes()

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.coordinator, s.registry, s.model, s.historyStore, s.cfg, s.logger)
	apiHandler.RegisterRoutes(apiRouter)

	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
}

// Router exposes the configured routes
func (s *Server) Router() http.Handler {
	return s.router
}

// ModelAvailable reports whether predictions can be served
func (s *Server) ModelAvailable() bool {
	return s.model.Available()
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("Server listening", zap.String("url", "http://localhost"+s.cfg.Addr()))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	// Close stores after in-flight requests have finished
	if s.historyStore != nil {
		if cerr := s.historyStore.Close(); cerr != nil {
			s.logger.Warn("Error closing prediction history", zap.Error(cerr))
		}
	}

	return err
}
