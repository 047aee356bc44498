// Package cart parses cart command flags and composes the realtime server.
package cart

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	entrypoint "github.com/louisbranch/sharedcart/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/sharedcart/internal/platform/grpc"
	"github.com/louisbranch/sharedcart/internal/platform/timeouts"
	server "github.com/louisbranch/sharedcart/internal/services/cart/app"
)

// Config holds cart command configuration.
type Config struct {
	HTTPAddr       string   `env:"SHAREDCART_HTTP_ADDR"        envDefault:":3000"`
	GRPCAddr       string   `env:"SHAREDCART_GRPC_ADDR"        envDefault:":3001"`
	CatalogDBPath  string   `env:"SHAREDCART_CATALOG_DB_PATH"  envDefault:"data/catalog.db"`
	SeedCatalog    bool     `env:"SHAREDCART_SEED_CATALOG"     envDefault:"true"`
	AllowedOrigins []string `env:"SHAREDCART_ALLOWED_ORIGINS"  envDefault:"*" envSeparator:","`
	OutboxSize     int      `env:"SHAREDCART_OUTBOX_SIZE"      envDefault:"256"`
	LogLevel       string   `env:"SHAREDCART_LOG_LEVEL"        envDefault:"info"`
	LogFormat      string   `env:"SHAREDCART_LOG_FORMAT"       envDefault:"text"`

	// Probe checks a running server's gRPC health and exits.
	Probe bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	origins := strings.Join(cfg.AllowedOrigins, ",")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "cart HTTP and WebSocket listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.CatalogDBPath, "catalog-db", cfg.CatalogDBPath, "product catalog sqlite path (empty disables)")
	fs.BoolVar(&cfg.SeedCatalog, "seed-catalog", cfg.SeedCatalog, "load sample products on startup")
	fs.StringVar(&origins, "allowed-origins", origins, "comma-separated CORS origins")
	fs.IntVar(&cfg.OutboxSize, "outbox-size", cfg.OutboxSize, "per-connection event buffer")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	fs.BoolVar(&cfg.Probe, "probe", false, "check the gRPC health of a running server and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.AllowedOrigins = splitOrigins(origins)
	return cfg, nil
}

// NewLogger builds the process logger described by cfg.
func NewLogger(w io.Writer, cfg Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.LogLevel))); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(cfg.LogFormat)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
}

// Run builds the cart app and serves until ctx is canceled.
func Run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceCart, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:       cfg.HTTPAddr,
			GRPCAddr:       cfg.GRPCAddr,
			CatalogDBPath:  cfg.CatalogDBPath,
			SeedCatalog:    cfg.SeedCatalog,
			AllowedOrigins: cfg.AllowedOrigins,
			OutboxSize:     cfg.OutboxSize,
			Logger:         logger,
		}); err != nil {
			return fmt.Errorf("serve cart: %w", err)
		}
		return nil
	})
}

// Probe reports whether the server at cfg.GRPCAddr is serving.
func Probe(ctx context.Context, cfg Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Probe)
	defer cancel()
	if err := platformgrpc.Probe(ctx, cfg.GRPCAddr, server.HealthServiceName, logger); err != nil {
		return fmt.Errorf("probe cart: %w", err)
	}
	return nil
}

func splitOrigins(raw string) []string {
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
