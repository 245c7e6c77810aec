// Package server exposes the allocator over HTTP so that several generator
// processes can draw codes from one registry.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/fraiseql/specql-sub006/internal/allocator"
	"github.com/fraiseql/specql-sub006/internal/state"
)

// Server is the allocation coordinator.
type Server struct {
	addr     string
	store    state.Store
	alloc    *allocator.Allocator
	logger   *slog.Logger
	metrics  *Metrics
	registry *prometheus.Registry
}

// Config holds configuration for the coordinator.
type Config struct {
	Addr   string
	Store  state.Store
	Logger *slog.Logger
}

// New creates a coordinator serving cfg.Store.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	return &Server{
		addr:     cfg.Addr,
		store:    cfg.Store,
		alloc:    allocator.New(cfg.Store, allocator.WithLogger(logger), allocator.WithObserver(metrics)),
		logger:   logger,
		metrics:  metrics,
		registry: reg,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.logRequests,
		middleware.Recoverer,
	)

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		s.routes(r)
	})
	return r
}

// Serve starts the coordinator and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting coordinator", "addr", s.addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down coordinator...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// logRequests logs each request at debug level and records its duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(route, r.Method, strconv.Itoa(status), elapsed)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("elapsed", elapsed),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
