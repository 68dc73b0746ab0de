package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mattjoyce/plugkit/internal/config"
	"github.com/mattjoyce/plugkit/internal/runlog"
)

const defaultRunsLimit = 20

func printRunsNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: plugkit runs <list|show> [flags]")
	fmt.Fprintln(w, "Use 'plugkit runs <action> --help' for action-specific usage.")
}

func printRunsListHelp() {
	fmt.Println("Usage: plugkit runs list [--plugin ID] [--status STATUS] [--limit N] [--config PATH] [--json]")
	fmt.Println("Lists recent runs, newest first.")
}

func printRunsShowHelp() {
	fmt.Println("Usage: plugkit runs show <run-id> [--config PATH] [--json]")
	fmt.Println("Shows one run with its recorded log records.")
}

func runRunsNoun(args []string) int {
	if len(args) < 1 {
		printRunsNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printRunsNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			printRunsListHelp()
			return 0
		}
		return runRunsList(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printRunsShowHelp()
			return 0
		}
		return runRunsShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown runs action: %s\n", action)
		return 1
	}
}

func runRunsList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	pluginID := fs.String("plugin", "", "Only runs of this plugin")
	status := fs.String("status", "", "Only runs in this status")
	limit := fs.Int("limit", defaultRunsLimit, "Maximum number of runs")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *limit < 1 {
		fmt.Fprintln(os.Stderr, "Error: --limit must be at least 1")
		return 1
	}
	st := runlog.Status(*status)
	if st != "" && st != runlog.StatusRunning && !st.Terminal() {
		fmt.Fprintf(os.Stderr, "Error: invalid status %q\n", *status)
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeStore()

	runs, err := store.List(ctx, runlog.ListFilter{Plugin: *pluginID, Status: st, Limit: *limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		if runs == nil {
			runs = []runlog.Run{}
		}
		return printJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return 0
	}
	for _, r := range runs {
		fmt.Printf("%-36s  %-14s  %-16s  %-12s  %3.0f%%  %s\n",
			r.ID, r.Status, r.Plugin, r.Task, r.Progress*100, r.CreatedAt.Local().Format(time.DateTime))
	}
	return 0
}

type runDetail struct {
	runlog.Run
	Logs []runlog.LogEntry `json:"logs"`
}

func runRunsShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: plugkit runs show <run-id> [--config PATH] [--json]")
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeStore()

	run, err := store.Get(ctx, positional[0])
	if errors.Is(err, runlog.ErrRunNotFound) {
		fmt.Fprintf(os.Stderr, "Run not found: %s\n", positional[0])
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logs, err := store.Logs(ctx, run.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		if logs == nil {
			logs = []runlog.LogEntry{}
		}
		return printJSON(runDetail{Run: *run, Logs: logs})
	}

	fmt.Printf("run:      %s\n", run.ID)
	fmt.Printf("plugin:   %s\n", run.Plugin)
	fmt.Printf("task:     %s\n", run.Task)
	fmt.Printf("status:   %s\n", run.Status)
	fmt.Printf("progress: %.0f%%\n", run.Progress*100)
	fmt.Printf("args:     %s\n", string(run.Args))
	fmt.Printf("created:  %s\n", run.CreatedAt.Local().Format(time.DateTime))
	if run.CompletedAt != nil {
		fmt.Printf("finished: %s (%s)\n", run.CompletedAt.Local().Format(time.DateTime),
			run.CompletedAt.Sub(run.CreatedAt).Round(time.Millisecond))
	}
	if run.ExitCode != nil {
		fmt.Printf("exit:     %d\n", *run.ExitCode)
	}
	if run.Output != nil {
		fmt.Printf("output:   %s\n", *run.Output)
	}
	if run.Error != nil {
		fmt.Printf("error:    %s\n", *run.Error)
	}
	if len(logs) > 0 {
		fmt.Println("logs:")
		for _, l := range logs {
			fmt.Printf("  %s [%s] %s\n", l.LoggedAt.Local().Format(time.TimeOnly), l.Level, l.Message)
		}
	}
	if run.Stderr != nil {
		fmt.Println("stderr:")
		fmt.Println(*run.Stderr)
	}
	return 0
}
