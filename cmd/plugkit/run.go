package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/mattjoyce/plugkit/internal/config"
	"github.com/mattjoyce/plugkit/internal/host"
	"github.com/mattjoyce/plugkit/internal/log"
	"github.com/mattjoyce/plugkit/internal/protocol"
	"github.com/mattjoyce/plugkit/internal/runlog"
	"github.com/mattjoyce/plugkit/internal/tui/watch"
)

func printRunHelp() {
	fmt.Println("Usage: plugkit run <plugin> [task] [--arg key=value]... [--config PATH] [--json] [--watch]")
	fmt.Println("Runs one task of a plugin and waits for it to finish.")
	fmt.Println("Without a task the plugin's first declared task runs.")
	fmt.Println("--arg may repeat; values are typed like YAML scalars (true, 42, 1.5).")
	fmt.Println("--watch shows live progress and log records when stdout is a terminal.")
	fmt.Println("Exit status is 0 only when the run succeeded.")
}

type runSummary struct {
	RunID      string                 `json:"run_id"`
	Plugin     string                 `json:"plugin"`
	Task       string                 `json:"task"`
	Status     runlog.Status          `json:"status"`
	ExitCode   int                    `json:"exit_code"`
	DurationMS int64                  `json:"duration_ms"`
	Result     *protocol.PluginOutput `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Print the run summary as JSON")
	watchMode := fs.Bool("watch", false, "Show live progress and log records")
	runArgs := argsFlag{}
	fs.Var(runArgs, "arg", "Task argument as key=value (repeatable)")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positional) < 1 || len(positional) > 2 {
		fmt.Fprintln(os.Stderr, "Usage: plugkit run <plugin> [task] [--arg key=value]... [--config PATH] [--json] [--watch]")
		return 1
	}
	pluginID := positional[0]
	var taskName string
	if len(positional) == 2 {
		taskName = positional[1]
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	if *watchMode && !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Warning: --watch needs a terminal; running without it")
		*watchMode = false
	}
	var logOut io.Writer = os.Stderr
	if *watchMode {
		logOut = io.Discard
	}
	setupLogging(cfg, logOut)
	logger := log.WithComponent("cli")

	registry, err := discoverPlugins(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Plugin discovery failed: %v\n", err)
		return 1
	}
	p, ok := registry.Get(pluginID)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown plugin: %s\n", pluginID)
		return 1
	}
	task, ok := p.Task(taskName)
	if !ok {
		fmt.Fprintf(os.Stderr, "Plugin %s has no task %q (available: %v)\n", p.ID, taskName, p.TaskNames())
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeStore()

	runner := host.New(cfg, host.WithStore(store))
	req := host.Request{Plugin: p, Task: task.Name, Args: protocol.ArgsMap(runArgs)}

	var res *host.Result
	if *watchMode {
		res, err = runWatched(ctx, runner, req)
	} else {
		res, err = runner.Run(ctx, req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run error: %v\n", err)
		return 1
	}

	if *jsonOut {
		if code := printJSON(summarize(res)); code != 0 {
			return code
		}
	} else {
		printResult(res)
	}
	if res.Status != runlog.StatusSucceeded {
		return 1
	}
	return 0
}

// runWatched drives the run under the watch TUI. Quitting the TUI cancels the
// run; the TUI exits on its own once the run is done.
func runWatched(ctx context.Context, runner *host.Runner, req host.Request) (*host.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(watch.New(req.Plugin.ID, req.Task, cancel), tea.WithAltScreen())
	req.Observer = watch.Observer(prog.Send)

	type outcome struct {
		res *host.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := runner.Run(ctx, req)
		prog.Send(watch.DoneMsg{Result: res, Err: err})
		done <- outcome{res, err}
	}()

	if _, err := prog.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
		cancel()
	}
	out := <-done
	return out.res, out.err
}

func summarize(res *host.Result) runSummary {
	s := runSummary{
		RunID:      res.RunID,
		Plugin:     res.Plugin,
		Task:       res.Task,
		Status:     res.Status,
		ExitCode:   res.ExitCode,
		DurationMS: res.Duration.Milliseconds(),
		Result:     res.Output,
	}
	if res.Err != nil {
		s.Error = res.Err.Error()
	}
	return s
}

func printResult(res *host.Result) {
	fmt.Printf("Run %s %s (%s %s, %s)\n", res.RunID, res.Status, res.Plugin, res.Task, res.Duration.Round(time.Millisecond))
	switch {
	case res.Output != nil && res.Output.Output != nil:
		fmt.Println(*res.Output.Output)
	case res.Output != nil && res.Output.Error != nil:
		fmt.Printf("Error: %s\n", *res.Output.Error)
	case res.Err != nil:
		fmt.Printf("Error: %v\n", res.Err)
	}
	if res.Status != runlog.StatusSucceeded && res.ExitCode != 0 {
		fmt.Printf("Exit code: %d\n", res.ExitCode)
	}
	if errors.Is(res.Err, context.Canceled) {
		fmt.Println("Run was cancelled.")
	}
}
