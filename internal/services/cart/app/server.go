// Package server wires the shared cart HTTP, WebSocket and gRPC lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/sharedcart/internal/platform/telemetry/metrics"
	"github.com/louisbranch/sharedcart/internal/platform/timeouts"
	"github.com/louisbranch/sharedcart/internal/services/cart/broadcast"
	"github.com/louisbranch/sharedcart/internal/services/cart/catalog"
	catalogsqlite "github.com/louisbranch/sharedcart/internal/services/cart/catalog/sqlite"
	"github.com/louisbranch/sharedcart/internal/services/cart/session"
)

// HealthServiceName is the gRPC health service reported for the cart.
const HealthServiceName = "sharedcart.v1.CartService"

const tracerName = "github.com/louisbranch/sharedcart/internal/services/cart/app"

// Config defines the inputs for the cart process.
type Config struct {
	HTTPAddr          string
	GRPCAddr          string
	CatalogDBPath     string
	SeedCatalog       bool
	AllowedOrigins    []string
	OutboxSize        int
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	WriteTimeout      time.Duration
	Logger            *slog.Logger
}

// Server hosts the cart HTTP/WebSocket surface and the optional gRPC health
// endpoint.
type Server struct {
	logger          *slog.Logger
	shutdownTimeout time.Duration
	httpListener    net.Listener
	httpServer      *http.Server
	grpcListener    net.Listener
	grpcServer      *grpc.Server
	health          *health.Server
	store           *catalogsqlite.Store
	gateway         *gateway
	registry        *session.Registry
}

// handlerDeps carries the collaborators shared by every route.
type handlerDeps struct {
	registry       *session.Registry
	router         *broadcast.Router
	actor          *session.Actor
	catalog        catalog.Store
	metrics        *metrics.Recorder
	logger         *slog.Logger
	allowedOrigins []string
	outboxSize     int
	writeTimeout   time.Duration
}

// newHandler builds the full route table wrapped in CORS. The returned
// gateway owns the live WebSocket connections.
func newHandler(deps handlerDeps) (http.Handler, *gateway) {
	if deps.logger == nil {
		deps.logger = slog.Default()
	}
	if deps.writeTimeout <= 0 {
		deps.writeTimeout = timeouts.WSWrite
	}
	origins := deps.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsPolicy := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	gw := newGateway(deps, corsPolicy)
	api := &queryAPI{registry: deps.registry, catalog: deps.catalog, logger: deps.logger}

	mux := http.NewServeMux()
	api.register(mux)
	mux.Handle("/metrics", deps.metrics.Handler())
	mux.Handle("/ws", gw.handler())
	return corsPolicy.Handler(mux), gw
}

// NewServer opens listeners and storage and assembles the cart runtime.
func NewServer(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var store *catalogsqlite.Store
	var catalogStore catalog.Store
	if path := strings.TrimSpace(config.CatalogDBPath); path != "" {
		opened, err := openCatalogStore(ctx, path)
		if err != nil {
			return nil, err
		}
		store, catalogStore = opened, opened
		if config.SeedCatalog {
			if err := catalog.Seed(ctx, store, time.Now()); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("seed catalog: %w", err)
			}
		}
	}

	recorder := metrics.New()
	router := broadcast.NewRouter(broadcast.Options{Metrics: recorder, Logger: logger})
	registry := session.NewRegistry(recorder)
	actor := session.NewActor(registry, router, session.Options{Metrics: recorder, Logger: logger})
	handler, gw := newHandler(handlerDeps{
		registry:       registry,
		router:         router,
		actor:          actor,
		catalog:        catalogStore,
		metrics:        recorder,
		logger:         logger,
		allowedOrigins: config.AllowedOrigins,
		outboxSize:     config.OutboxSize,
		writeTimeout:   config.WriteTimeout,
	})

	httpListener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		closeStore(store, logger)
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	httpServer.RegisterOnShutdown(gw.closeAll)

	s := &Server{
		logger:          logger,
		shutdownTimeout: config.ShutdownTimeout,
		httpListener:    httpListener,
		httpServer:      httpServer,
		store:           store,
		gateway:         gw,
		registry:        registry,
	}

	if grpcAddr := strings.TrimSpace(config.GRPCAddr); grpcAddr != "" {
		grpcListener, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("listen on %s: %w", grpcAddr, err)
		}
		s.grpcListener = grpcListener
		s.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		s.health = health.NewServer()
		grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
		s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		s.health.SetServingStatus(HealthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	}
	return s, nil
}

// HTTPAddr returns the bound HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC listener address, or "" when disabled.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates and serves a cart server until context cancellation.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(ctx, config)
	if err != nil {
		return fmt.Errorf("init cart server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve cart: %w", err)
	}
	return nil
}

// ListenAndServe serves HTTP and gRPC until ctx is canceled or either
// listener fails, then shuts both down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("cart server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	s.logger.Info("cart server listening", "http_addr", s.HTTPAddr(), "grpc_addr", s.GRPCAddr())

	group.Go(func() error {
		err := s.httpServer.Serve(s.httpListener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	})
	if s.grpcServer != nil {
		group.Go(func() error {
			err := s.grpcServer.Serve(s.grpcListener)
			if err == nil || errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return fmt.Errorf("serve gRPC: %w", err)
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		if s.health != nil {
			s.health.Shutdown()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		if s.grpcServer != nil {
			s.grpcServer.GracefulStop()
		}
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.gateway != nil {
		s.gateway.closeAll()
	}
	closeStore(s.store, s.logger)
}

func openCatalogStore(ctx context.Context, path string) (*catalogsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := catalogsqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open catalog sqlite store: %w", err)
	}
	return store, nil
}

func closeStore(store *catalogsqlite.Store, logger *slog.Logger) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.Warn("close catalog store", "error", err)
	}
}
