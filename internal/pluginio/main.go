package pluginio

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/plugkit/internal/dispatch"
	"github.com/mattjoyce/plugkit/internal/log"
	"github.com/mattjoyce/plugkit/internal/pluginlog"
)

// Main runs the plugin against the real process streams and exits.
// SIGINT and SIGTERM cancel the task's context.
func Main(reg *dispatch.Registry, opts ...Option) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// slog output inside the plugin must stay on the framed channel; the
	// host does its own level filtering.
	opts = append([]Option{WithLoggerHook(func(l *pluginlog.Logger) {
		log.SetupPlugin(l, "trace")
	})}, opts...)

	code := Run(ctx, Env{
		Args:   os.Args[1:],
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}, reg, opts...)

	stop()
	os.Exit(code)
}
