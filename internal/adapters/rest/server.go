package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"search-service/internal/core/port"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// MetricsProvider HTTP-метрики: middleware и страница /metrics
type MetricsProvider interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

type Server struct {
	httpServer *http.Server
	logger     port.LoggerPort
}

func NewServer(
	cfg ServerConfig,
	searchHandler *SearchHandler,
	adminHandler *AdminHandler,
	healthHandler *HealthHandler,
	metrics MetricsProvider,
	baseLogger port.LoggerPort,
) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      NewRouter(cfg, searchHandler, adminHandler, healthHandler, metrics, baseLogger),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: baseLogger,
	}
}

// NewRouter собирает маршруты; metrics может быть nil
func NewRouter(
	cfg ServerConfig,
	searchHandler *SearchHandler,
	adminHandler *AdminHandler,
	healthHandler *HealthHandler,
	metrics MetricsProvider,
	baseLogger port.LoggerPort,
) http.Handler {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Trace-ID"},
		ExposedHeaders: []string{"X-Trace-ID"},
		MaxAge:         300,
	}))
	if metrics != nil {
		r.Use(metrics.Middleware)
	}
	r.Use(LoggerMiddleware(baseLogger), middleware.Recoverer)

	r.Get("/health", healthHandler.Health)
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/search", func(r chi.Router) {
			r.Get("/listings", searchHandler.SearchListings)
			r.Post("/listings", searchHandler.SearchListingsPost)
			r.Get("/listings/{id}", searchHandler.GetListing)
			r.Get("/suggestions", searchHandler.Suggestions)
			r.Get("/trending", searchHandler.Trending)
			r.Get("/aggregations/cities", searchHandler.CityAggregation)
			r.Get("/aggregations/price-ranges", searchHandler.PriceRangeAggregation)
			r.Get("/aggregations/property-types", searchHandler.PropertyTypeAggregation)
			r.Get("/users", searchHandler.SearchUsers)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/reindex", adminHandler.Reindex)
			r.Get("/sync/stats", adminHandler.SyncStats)
		})
	})

	return r
}

// Start блокируется до Stop; штатная остановка не считается ошибкой
func (s *Server) Start() error {
	s.logger.Info("Starting REST server", port.Fields{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST server...", nil)
	return s.httpServer.Shutdown(ctx)
}
