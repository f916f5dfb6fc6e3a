package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Alexmontesino96/GymAPI-sub008/pkg/config"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/errors"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/feed"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/http/handlers"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/insights"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/logging"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/metrics"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/store"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/websocket"
)

// Server hosts the activity-feed read API, the websocket stream and the
// operational endpoints behind a single chi router.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	logger     *logging.Logger
}

// Deps bundles the collaborators the server routes requests to.
type Deps struct {
	Store    store.Store
	Feed     *feed.Publisher
	Insights *insights.Service
	Hub      *websocket.Hub
	Metrics  *metrics.Metrics
}

func NewServer(cfg *config.Config, deps Deps, logger *logging.Logger) *Server {
	router := chi.NewRouter()

	errHandler := errors.NewHandler(true)

	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggingMiddleware(logger))
	if deps.Metrics != nil {
		router.Use(MetricsMiddleware(deps.Metrics))
	}

	feedHandlers := handlers.NewFeedHandlers(deps.Feed, deps.Insights, TenantID, errHandler, logger)
	healthHandler := handlers.NewHealthHandler(deps.Store)
	wsHandler := websocket.NewFeedHandler(deps.Hub, logger)

	router.Route("/activity-feed", func(r chi.Router) {
		// The websocket route authenticates via query parameter because
		// browsers cannot set headers on upgrade requests.
		r.Get("/ws", wsHandler.ServeHTTP)
		r.Get("/health", healthHandler.Health)

		r.Group(func(r chi.Router) {
			r.Use(TenantMiddleware(errHandler))
			r.Get("/", feedHandlers.GetFeed)
			r.Get("/realtime", feedHandlers.GetRealtime)
			r.Get("/insights", feedHandlers.GetInsights)
			r.Get("/rankings/{metric}", feedHandlers.GetRanking)
		})
	})

	router.Get("/health", healthHandler.Liveness)
	router.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		router: router,
		logger: logger,
	}
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving. It blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
