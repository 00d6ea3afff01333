// Package muster parses readiness service flags and composes its entrypoint.
package muster

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/musterhq/muster/internal/platform/cmd"
	server "github.com/musterhq/muster/internal/services/readycheck/app"
)

// Config holds muster command configuration.
type Config struct {
	HTTPAddr string `env:"MUSTER_HTTP_ADDR" envDefault:":8092"`
	DBPath   string `env:"MUSTER_DB_PATH"   envDefault:"data/muster.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the readiness app and serves it until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMuster, func(ctx context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr: cfg.HTTPAddr,
			DBPath:   cfg.DBPath,
		}); err != nil {
			return fmt.Errorf("serve readycheck: %w", err)
		}
		return nil
	})
}
