package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/plugkit/internal/config"
	"github.com/mattjoyce/plugkit/internal/log"
	"github.com/mattjoyce/plugkit/internal/plugin"
	"github.com/mattjoyce/plugkit/internal/protocol"
	"github.com/mattjoyce/plugkit/internal/runlog"
	"github.com/mattjoyce/plugkit/internal/storage"
)

func setupLogging(cfg *config.Config, w io.Writer) {
	log.SetupWriter(w, cfg.Service.LogLevel, cfg.Service.LogFormat)
}

func discoverPlugins(cfg *config.Config, logger *slog.Logger) (*plugin.Registry, error) {
	return plugin.Discover(cfg.PluginsDir, func(level, msg string, args ...any) {
		switch level {
		case "debug":
			logger.Debug(msg, args...)
		case "info":
			logger.Debug(msg, args...)
		case "warn":
			logger.Warn(msg, args...)
		default:
			logger.Error(msg, args...)
		}
	}, plugin.WithDisabled(cfg.Disabled...))
}

// openStore opens the run history named by state.path.
func openStore(ctx context.Context, cfg *config.Config) (*runlog.Store, func(), error) {
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open state %s: %w", cfg.State.Path, err)
	}
	return runlog.New(db), func() { _ = db.Close() }, nil
}

// parseInterspersed parses fs from args while allowing flags to follow
// positional arguments. It returns the positional arguments in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// argsFlag collects repeated --arg key=value flags.
type argsFlag protocol.ArgsMap

func (a argsFlag) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, a[k]))
	}
	return strings.Join(parts, ",")
}

func (a argsFlag) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	a[key] = parseArgValue(value)
	return nil
}

// parseArgValue types a command-line value the way YAML would: true, 42 and
// 1.5 become bool, int and float; anything else stays a string.
func parseArgValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case bool, int, float64:
		return v
	default:
		return s
	}
}
