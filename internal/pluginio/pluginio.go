// Package pluginio implements the plugin side of a run: acquiring the
// invocation from stdin or the command line, dispatching it, and writing the
// single result payload to stdout.
package pluginio

import (
	"context"
	"fmt"
	"io"

	"github.com/mattjoyce/plugkit/internal/dispatch"
	"github.com/mattjoyce/plugkit/internal/pluginlog"
	"github.com/mattjoyce/plugkit/internal/protocol"
)

// DefaultPort is the backend port assumed when a plugin is run by hand.
const DefaultPort = 9999

// DefaultServerConnection is the connection synthesized for command-line
// invocations. It never depends on the environment.
func DefaultServerConnection() protocol.ServerConnection {
	return protocol.ServerConnection{
		Scheme: "http",
		Port:   DefaultPort,
	}
}

// ReadInput resolves the invocation. With no positional arguments the whole
// of stdin is decoded as the payload; otherwise argv[0] is the mode and the
// connection is DefaultServerConnection. Remaining arguments are left to the
// task.
func ReadInput(argv []string, stdin io.Reader) (*protocol.PluginInput, error) {
	if len(argv) == 0 {
		in, err := protocol.DecodeInput(stdin)
		if err != nil {
			return nil, fmt.Errorf("read plugin input: %w", err)
		}
		return in, nil
	}

	return &protocol.PluginInput{
		ServerConnection: DefaultServerConnection(),
		Args:             protocol.ArgsMap{protocol.ModeKey: argv[0]},
	}, nil
}

// WriteOutput writes the result payload and a trailing newline.
func WriteOutput(w io.Writer, out *protocol.PluginOutput) error {
	return protocol.EncodeOutput(w, out)
}

// Env is the process environment of one plugin run.
type Env struct {
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

type runConfig struct {
	policy   dispatch.ErrorPolicy
	logOpts  []pluginlog.Option
	onLogger func(*pluginlog.Logger)
}

// Option tunes Run.
type Option func(*runConfig)

// WithErrorPolicy selects how task failures are surfaced.
func WithErrorPolicy(p dispatch.ErrorPolicy) Option {
	return func(c *runConfig) {
		c.policy = p
	}
}

// WithLoggerOptions passes options to the stderr logger.
func WithLoggerOptions(opts ...pluginlog.Option) Option {
	return func(c *runConfig) {
		c.logOpts = append(c.logOpts, opts...)
	}
}

// WithLoggerHook is called with the stderr logger before dispatch, e.g. to
// route slog through it.
func WithLoggerHook(fn func(*pluginlog.Logger)) Option {
	return func(c *runConfig) {
		c.onLogger = fn
	}
}

// Run executes one invocation end to end and returns the process exit code.
// stdout receives at most one payload and nothing else; diagnostics go to
// stderr as framed records.
func Run(ctx context.Context, env Env, reg *dispatch.Registry, opts ...Option) int {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := pluginlog.New(env.Stderr, cfg.logOpts...)
	if cfg.onLogger != nil {
		cfg.onLogger(logger)
	}

	in, err := ReadInput(env.Args, env.Stdin)
	if err != nil {
		logger.Error(err.Error())
		return 1
	}

	d := dispatch.New(reg, dispatch.WithErrorPolicy(cfg.policy))
	out, runErr := d.Dispatch(ctx, &dispatch.Env{Input: in, Log: logger})

	if out != nil {
		if err := WriteOutput(env.Stdout, out); err != nil {
			logger.Error(err.Error())
			return 1
		}
	}
	if runErr != nil {
		logger.Error(runErr.Error())
		return 1
	}
	return 0
}
