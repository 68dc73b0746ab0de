// Package host runs plugins as child processes: it hands them their input,
// follows their framed stderr live, and records the outcome.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mattjoyce/plugkit/internal/config"
	"github.com/mattjoyce/plugkit/internal/log"
	"github.com/mattjoyce/plugkit/internal/metrics"
	"github.com/mattjoyce/plugkit/internal/plugin"
	"github.com/mattjoyce/plugkit/internal/protocol"
	"github.com/mattjoyce/plugkit/internal/runlog"
)

const (
	// maxStderrBytes caps the raw stderr kept with a run.
	maxStderrBytes = runlog.MaxStderrBytes

	// maxStdoutBytes caps the result payload read from a plugin.
	maxStdoutBytes = 8 << 20
)

var (
	// ErrUnknownTask is returned when a plugin does not declare the task.
	ErrUnknownTask = errors.New("unknown task")
	// ErrPluginDisabled is returned for plugins disabled in the configuration.
	ErrPluginDisabled = errors.New("plugin is disabled")
)

// Request describes one run.
type Request struct {
	Plugin *plugin.Plugin
	// Task is a task name from the manifest; empty selects the first one.
	Task string
	// Args are the caller's arguments. Task defaults fill only missing keys.
	Args     protocol.ArgsMap
	Observer Observer
}

// Result is the outcome of a run.
type Result struct {
	RunID    string
	Plugin   string
	Task     string
	Status   runlog.Status
	ExitCode int
	Output   *protocol.PluginOutput
	// Err describes why a run did not succeed.
	Err      error
	Stderr   string
	Duration time.Duration
}

// Runner spawns plugins.
type Runner struct {
	cfg     *config.Config
	store   *runlog.Store
	metrics *metrics.Collector
	grace   time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore records runs in store.
func WithStore(store *runlog.Store) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithMetrics counts runs in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// New creates a Runner using cfg for connection details and limits.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:   cfg,
		grace: cfg.Timeouts.Grace,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BuildInput assembles the payload a plugin receives for a task. Caller args
// win over configured plugin args, which win over the task's defaultArgs.
// When nothing sets a mode, the task name is used.
func (r *Runner) BuildInput(p *plugin.Plugin, task *plugin.Task, args protocol.ArgsMap) *protocol.PluginInput {
	merged := protocol.ArgsMap{}
	for k, v := range task.DefaultArgs {
		merged[k] = v
	}
	if pc, ok := r.cfg.Plugins[p.ID]; ok {
		for k, v := range pc.Args {
			merged[k] = v
		}
	}
	for k, v := range args {
		merged[k] = v
	}
	if _, ok := merged[protocol.ModeKey]; !ok {
		merged[protocol.ModeKey] = task.Name
	}

	conn := r.cfg.Server.Connection()
	if wd, err := os.Getwd(); err == nil {
		conn.Dir = wd
	}
	conn.PluginDir = p.Path

	return &protocol.PluginInput{ServerConnection: conn, Args: merged}
}

// Run executes one task of a plugin and waits for it to finish. The returned
// error is non-nil only when the run could not be attempted; plugin failures
// are reported through Result.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	p := req.Plugin
	if p.Disabled {
		return nil, fmt.Errorf("plugin %q: %w", p.ID, ErrPluginDisabled)
	}
	task, ok := p.Task(req.Task)
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w %q (available: %v)", p.ID, ErrUnknownTask, req.Task, p.TaskNames())
	}
	obs := req.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	input := r.BuildInput(p, task, req.Args)
	argsJSON, err := json.Marshal(input.Args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}

	runID := uuid.NewString()
	// Bookkeeping writes must land even when ctx is what ended the run.
	bgctx := context.WithoutCancel(ctx)
	if r.store != nil {
		if _, err := r.store.Create(bgctx, runlog.CreateRequest{
			ID:           runID,
			Plugin:       p.ID,
			Task:         task.Name,
			ManifestHash: p.Hash,
			Args:         argsJSON,
		}); err != nil {
			return nil, err
		}
	}

	logger := log.WithRun(runID).With("component", "host", "plugin", p.ID, "task", task.Name)
	var finish func(string)
	if r.metrics != nil {
		finish = r.metrics.RunStarted(p.ID, task.Name)
	}

	res := &Result{RunID: runID, Plugin: p.ID, Task: task.Name}
	start := time.Now()
	r.execute(ctx, bgctx, p, task, input, obs, logger, res)
	res.Duration = time.Since(start)

	if finish != nil {
		finish(string(res.Status))
	}
	if r.store != nil {
		if err := r.store.Complete(bgctx, runID, completion(res)); err != nil {
			logger.Error("failed to record run completion", "error", err)
		}
	}

	attrs := []any{"status", res.Status, "exit_code", res.ExitCode, "duration", res.Duration}
	if res.Err != nil {
		logger.Warn("run finished", append(attrs, "error", res.Err.Error())...)
	} else {
		logger.Info("run finished", attrs...)
	}
	return res, nil
}

func completion(res *Result) runlog.Completion {
	c := runlog.Completion{Status: res.Status}
	if (res.Status != runlog.StatusTimedOut && res.Status != runlog.StatusCancelled) || res.ExitCode != 0 {
		code := res.ExitCode
		c.ExitCode = &code
	}
	if res.Output != nil {
		switch {
		case res.Output.Error != nil:
			c.Error = res.Output.Error
		case res.Output.Output != nil:
			c.Output = res.Output.Output
		}
	}
	if c.Error == nil && res.Err != nil {
		msg := res.Err.Error()
		c.Error = &msg
	}
	if res.Stderr != "" {
		c.Stderr = &res.Stderr
	}
	return c
}

// execute spawns the plugin, feeds it input and fills res. ctx ends the run
// early; bgctx is used for bookkeeping.
func (r *Runner) execute(
	ctx, bgctx context.Context,
	p *plugin.Plugin,
	task *plugin.Task,
	input *protocol.PluginInput,
	obs Observer,
	logger *slog.Logger,
	res *Result,
) {
	timeout := r.cfg.RunTimeout(p.ID)
	timeoutTimer := time.NewTimer(timeout)
	defer timeoutTimer.Stop()

	// Termination is managed here rather than through CommandContext so the
	// plugin gets SIGTERM and a grace period first.
	argv := p.Command(task)
	if len(argv) == 0 {
		res.Status = runlog.StatusFailed
		res.Err = errors.New("plugin has no exec command")
		return
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = p.Path
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		res.Status = runlog.StatusFailed
		res.Err = fmt.Errorf("create stdin pipe: %w", err)
		return
	}

	stdout := newCappedBuffer(maxStdoutBytes)
	capture := newCappedBuffer(maxStderrBytes)
	records := &recordSink{
		runner:  r,
		ctx:     bgctx,
		plugin:  p,
		runID:   res.RunID,
		obs:     obs,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(r.cfg.Progress.PersistRate), 1),
	}
	lines := newLineWriter(func(line []byte) {
		_, _ = capture.Write(line)
		_, _ = capture.Write([]byte{'\n'})
		records.handle(line)
	})
	cmd.Stdout = stdout
	cmd.Stderr = lines
	// Grandchildren holding the pipes open must not stall Wait forever.
	cmd.WaitDelay = r.grace + time.Second

	logger.Debug("spawning plugin", "exec", argv, "timeout", timeout)
	if err := cmd.Start(); err != nil {
		res.Status = runlog.StatusFailed
		res.Err = fmt.Errorf("start plugin: %w", err)
		return
	}

	writeErr := make(chan error, 1)
	go func() {
		defer stdin.Close()
		writeErr <- protocol.EncodeInput(stdin, input)
	}()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var (
		exitErr error
		stopped runlog.Status
	)
	select {
	case exitErr = <-waitErr:
	case <-timeoutTimer.C:
		logger.Warn("plugin execution timed out, sending SIGTERM", "timeout", timeout)
		stopped = runlog.StatusTimedOut
		exitErr = r.terminate(cmd, waitErr, logger)
	case <-ctx.Done():
		logger.Warn("run cancelled, sending SIGTERM")
		stopped = runlog.StatusCancelled
		exitErr = r.terminate(cmd, waitErr, logger)
	}
	lines.Flush()
	records.flushProgress()

	res.Stderr = capture.String()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch stopped {
	case runlog.StatusTimedOut:
		res.Status = stopped
		res.Err = fmt.Errorf("plugin execution timed out after %v", timeout)
		return
	case runlog.StatusCancelled:
		res.Status = stopped
		res.Err = context.Cause(ctx)
		return
	}

	if werr := <-writeErr; werr != nil {
		// Plugins invoked with their mode on the command line may never read
		// stdin.
		logger.Debug("plugin did not consume input", "error", werr)
	}

	var ee *exec.ExitError
	if exitErr != nil && !errors.As(exitErr, &ee) {
		res.Status = runlog.StatusFailed
		res.Err = fmt.Errorf("wait for plugin: %w", exitErr)
		return
	}

	r.classify(p, stdout, res, logger)
}

// classify decides the status of a run that exited on its own.
func (r *Runner) classify(p *plugin.Plugin, stdout *cappedBuffer, res *Result, logger *slog.Logger) {
	if stdout.Truncated() {
		res.Status = runlog.StatusProtocolError
		res.Err = fmt.Errorf("plugin result exceeds %d bytes", maxStdoutBytes)
		r.protocolError(p)
		return
	}

	var out *protocol.PluginOutput
	if len(bytes.TrimSpace(stdout.Bytes())) > 0 {
		decoded, raw, err := protocol.DecodeOutputLenient(bytes.NewReader(stdout.Bytes()))
		if err != nil {
			logger.Error("failed to decode plugin result", "error", err, "stdout", string(raw))
			res.Status = runlog.StatusProtocolError
			res.Err = fmt.Errorf("decode plugin result: %w", err)
			r.protocolError(p)
			return
		}
		out = decoded
	}
	res.Output = out

	switch {
	case res.ExitCode != 0:
		res.Status = runlog.StatusFailed
		if out != nil && out.IsError() {
			res.Err = errors.New(*out.Error)
		} else {
			res.Err = fmt.Errorf("plugin exited with status %d", res.ExitCode)
		}
	case out == nil:
		res.Status = runlog.StatusProtocolError
		res.Err = errors.New("plugin exited without a result")
		r.protocolError(p)
	case out.IsError():
		res.Status = runlog.StatusFailed
		res.Err = errors.New(*out.Error)
	default:
		res.Status = runlog.StatusSucceeded
	}
}

func (r *Runner) protocolError(p *plugin.Plugin) {
	if r.metrics != nil {
		r.metrics.ProtocolError(p.ID)
	}
}

// terminate sends SIGTERM, waits for the grace period, then SIGKILL.
func (r *Runner) terminate(cmd *exec.Cmd, waitErr <-chan error, logger *slog.Logger) error {
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		logger.Error("failed to send SIGTERM", "error", err)
	}

	grace := time.NewTimer(r.grace)
	defer grace.Stop()

	select {
	case err := <-waitErr:
		logger.Info("plugin exited after SIGTERM")
		return err
	case <-grace.C:
		logger.Warn("plugin did not exit after SIGTERM, sending SIGKILL")
		if err := cmd.Process.Kill(); err != nil {
			logger.Error("failed to send SIGKILL", "error", err)
		}
		return <-waitErr
	}
}

// recordSink turns stderr lines into observer calls, persisted log rows,
// metrics and host log entries.
type recordSink struct {
	runner  *Runner
	ctx     context.Context
	plugin  *plugin.Plugin
	runID   string
	obs     Observer
	logger  *slog.Logger
	limiter *rate.Limiter

	pending   bool
	persisted float64
	last      float64
}

func (s *recordSink) handle(line []byte) {
	level, msg, ok := protocol.DecodeFrame(line)
	if !ok {
		level = s.plugin.ErrLog
		msg = string(bytes.TrimRight(line, "\r"))
		if level == protocol.NoLevel || msg == "" {
			return
		}
	}

	if level == protocol.ProgressLevel {
		f, err := strconv.ParseFloat(msg, 64)
		if err != nil || math.IsNaN(f) {
			s.logger.Warn("plugin sent invalid progress", "value", msg)
			return
		}
		s.progress(math.Max(0, math.Min(1, f)))
		return
	}

	if s.runner.metrics != nil {
		s.runner.metrics.LogRecord(s.plugin.ID, string(level))
	}
	s.obs.OnLog(level, msg)
	s.logger.Log(s.ctx, slogLevel(level), msg, "source", "plugin")
	if s.runner.store != nil {
		if err := s.runner.store.AppendLog(s.ctx, s.runID, string(level), msg); err != nil {
			s.logger.Error("failed to record plugin log", "error", err)
		}
	}
}

func (s *recordSink) progress(f float64) {
	if s.runner.metrics != nil {
		s.runner.metrics.LogRecord(s.plugin.ID, string(protocol.ProgressLevel))
	}
	s.obs.OnProgress(f)
	s.last = f
	s.pending = true
	if s.limiter.Allow() {
		s.persist()
	}
}

// flushProgress stores the latest fraction if throttling held it back.
func (s *recordSink) flushProgress() {
	if s.pending {
		s.persist()
	}
}

func (s *recordSink) persist() {
	s.pending = false
	if s.runner.store == nil || s.last == s.persisted {
		return
	}
	s.persisted = s.last
	if err := s.runner.store.UpdateProgress(s.ctx, s.runID, s.last); err != nil {
		s.logger.Debug("failed to record progress", "error", err)
	}
}

// slogLevel maps a record level onto the host's slog levels.
func slogLevel(l protocol.Level) slog.Level {
	switch l {
	case protocol.TraceLevel:
		return slog.LevelDebug - 4
	case protocol.DebugLevel, protocol.ProgressLevel:
		return slog.LevelDebug
	case protocol.WarningLevel:
		return slog.LevelWarn
	case protocol.ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
