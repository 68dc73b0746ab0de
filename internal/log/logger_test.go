package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/mattjoyce/plugkit/internal/pluginlog"
	"github.com/mattjoyce/plugkit/internal/protocol"
)

func reset() {
	logger = nil
	once = *new(sync.Once)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
		"trace":   slog.LevelDebug - 4,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupWriterText(t *testing.T) {
	reset()
	defer reset()

	var buf bytes.Buffer
	SetupWriter(&buf, "DEBUG", "text")
	Debug("hello", "k", "v")

	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=v") {
		t.Errorf("unexpected text output: %q", buf.String())
	}
}

func TestSetupOnlyOnce(t *testing.T) {
	reset()
	defer reset()

	var first, second bytes.Buffer
	SetupWriter(&first, "INFO", "json")
	SetupWriter(&second, "INFO", "json")
	Info("x")

	if first.Len() == 0 || second.Len() != 0 {
		t.Errorf("expected only the first Setup to take effect")
	}
}

func TestSetupPluginWritesFrames(t *testing.T) {
	reset()
	defer reset()

	var buf bytes.Buffer
	SetupPlugin(pluginlog.New(&buf), "info")
	Debug("dropped")
	Warn("careful", "scene", "3")

	level, msg, ok := protocol.DecodeFrame(buf.Bytes())
	if !ok {
		t.Fatalf("expected a framed line, got %q", buf.String())
	}
	if level != protocol.WarningLevel || msg != "careful scene=3" {
		t.Errorf("got (%s, %q)", level, msg)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("debug record should have been dropped: %q", buf.String())
	}
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	l := slog.New(h)

	// Inject this logger as the global logger for the test
	logger = l
	defer reset()

	l2 := WithComponent("test-comp")
	l2.Info("hello")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}

	if out["component"] != "test-comp" {
		t.Errorf("Expected component 'test-comp', got %v", out["component"])
	}
	if out["msg"] != "hello" {
		t.Errorf("Expected msg 'hello', got %v", out["msg"])
	}
}

func TestWithPlugin(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, nil))
	defer reset()

	WithPlugin("tagger").Info("plugin msg")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["plugin"] != "tagger" {
		t.Errorf("Expected plugin 'tagger', got %v", out["plugin"])
	}
}

func TestWithRun(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, nil))
	defer reset()

	WithRun("run-123").Info("run msg")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["run_id"] != "run-123" {
		t.Errorf("Expected run_id 'run-123', got %v", out["run_id"])
	}
}
