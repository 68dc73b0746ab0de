package dispatch

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/plugkit/internal/pluginlog"
	"github.com/mattjoyce/plugkit/internal/protocol"
)

// recorder counts how often each mode's task ran.
type recorder struct {
	calls map[Mode]int
}

func (r *recorder) task(mode Mode) Task {
	return TaskFunc(func(_ context.Context, env *Env) (*protocol.PluginOutput, error) {
		r.calls[mode]++
		env.Log.Infof("running %s", mode)
		return nil, nil
	})
}

func newTestRegistry(t *testing.T) (*Registry, *recorder) {
	t.Helper()
	rec := &recorder{calls: map[Mode]int{}}
	reg, err := NewRegistry("add",
		Entry{Mode: "add", Task: rec.task("add")},
		Entry{Mode: "remove", Task: rec.task("remove")},
	)
	require.NoError(t, err)
	return reg, rec
}

func envFor(mode string, buf *bytes.Buffer) *Env {
	return &Env{
		Input: &protocol.PluginInput{Args: protocol.ArgsMap{"mode": mode}},
		Log:   pluginlog.New(buf),
	}
}

func TestNewRegistryValidation(t *testing.T) {
	noop := TaskFunc(func(context.Context, *Env) (*protocol.PluginOutput, error) { return nil, nil })

	tests := []struct {
		name    string
		def     Mode
		entries []Entry
	}{
		{"missing default", "", []Entry{{Mode: "a", Task: noop}}},
		{"default not registered", "b", []Entry{{Mode: "a", Task: noop}}},
		{"duplicate mode", "a", []Entry{{Mode: "a", Task: noop}, {Mode: "a", Task: noop}}},
		{"empty mode", "a", []Entry{{Mode: "a", Task: noop}, {Mode: "", Task: noop}}},
		{"nil task", "a", []Entry{{Mode: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.def, tt.entries...)
			assert.Error(t, err)
		})
	}

	assert.Panics(t, func() { MustRegistry("x") })
}

func TestRegistryResolve(t *testing.T) {
	reg, _ := newTestRegistry(t)

	mode, task, ok := reg.Resolve("")
	assert.True(t, ok)
	assert.Equal(t, Mode("add"), mode)
	assert.NotNil(t, task)

	mode, _, ok = reg.Resolve("remove")
	assert.True(t, ok)
	assert.Equal(t, Mode("remove"), mode)

	_, _, ok = reg.Resolve("nope")
	assert.False(t, ok)

	assert.Equal(t, []Mode{"add", "remove"}, reg.Modes())
	assert.Equal(t, Mode("add"), reg.Default())
}

func TestDispatchEmptyModeEqualsDefault(t *testing.T) {
	reg, rec := newTestRegistry(t)

	var emptyLog, defaultLog bytes.Buffer
	outEmpty, err := New(reg).Dispatch(context.Background(), envFor("", &emptyLog))
	require.NoError(t, err)
	outDefault, err := New(reg).Dispatch(context.Background(), envFor("add", &defaultLog))
	require.NoError(t, err)

	assert.Equal(t, 2, rec.calls["add"])
	assert.Zero(t, rec.calls["remove"])
	assert.Equal(t, outDefault, outEmpty)
	assert.Equal(t, defaultLog.String(), emptyLog.String())
}

// Unregistered modes succeed without running anything. This mirrors the
// behavior hosts already depend on; a typo in a mode name is not reported.
func TestDispatchUnknownModeIsSilentNoop(t *testing.T) {
	reg, rec := newTestRegistry(t)

	var buf bytes.Buffer
	out, err := New(reg).Dispatch(context.Background(), envFor("tag-everything", &buf))
	require.NoError(t, err)
	require.NotNil(t, out.Output)
	assert.Equal(t, "ok", *out.Output)
	assert.Empty(t, rec.calls)
	assert.Zero(t, buf.Len(), "no task body means no log records")
}

func TestDispatchTaskOutputPassesThrough(t *testing.T) {
	out := protocol.OK("tagged")
	out.Extra = map[string]any{"scene_id": "4"}
	reg := MustRegistry("x", Entry{Mode: "x", Task: TaskFunc(func(context.Context, *Env) (*protocol.PluginOutput, error) {
		return out, nil
	})})

	var buf bytes.Buffer
	got, err := New(reg).Dispatch(context.Background(), envFor("x", &buf))
	require.NoError(t, err)
	assert.Same(t, out, got)
}

func TestDispatchTaskFailureCrashPolicy(t *testing.T) {
	boom := errors.New("backend unreachable")
	reg := MustRegistry("x", Entry{Mode: "x", Task: TaskFunc(func(context.Context, *Env) (*protocol.PluginOutput, error) {
		return protocol.OK("ignored"), boom
	})})

	var buf bytes.Buffer
	out, err := New(reg).Dispatch(context.Background(), envFor("x", &buf))
	assert.Nil(t, out, "crash policy must not produce a result")
	require.ErrorIs(t, err, boom)

	var terr *TaskError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, Mode("x"), terr.Mode)
}

func TestDispatchTaskFailureReportPolicy(t *testing.T) {
	boom := errors.New("backend unreachable")
	reg := MustRegistry("x", Entry{Mode: "x", Task: TaskFunc(func(context.Context, *Env) (*protocol.PluginOutput, error) {
		return nil, boom
	})})

	var buf bytes.Buffer
	out, err := New(reg, WithErrorPolicy(ErrorPolicyReport)).Dispatch(context.Background(), envFor("", &buf))
	require.ErrorIs(t, err, boom)
	require.NotNil(t, out)
	require.True(t, out.IsError())
	assert.Contains(t, *out.Error, "backend unreachable")
}

func TestDispatcherIsSingleUse(t *testing.T) {
	reg, rec := newTestRegistry(t)
	d := New(reg)
	assert.Equal(t, StateIdle, d.State())

	var buf bytes.Buffer
	_, err := d.Dispatch(context.Background(), envFor("add", &buf))
	require.NoError(t, err)
	assert.Equal(t, StateDone, d.State())

	_, err = d.Dispatch(context.Background(), envFor("add", &buf))
	assert.ErrorIs(t, err, ErrAlreadyDispatched)
	assert.Equal(t, 1, rec.calls["add"])
}

func TestDispatcherStateWhileRunning(t *testing.T) {
	var d *Dispatcher
	var seen State
	reg := MustRegistry("x", Entry{Mode: "x", Task: TaskFunc(func(context.Context, *Env) (*protocol.PluginOutput, error) {
		seen = d.State()
		return nil, nil
	})})
	d = New(reg)

	var buf bytes.Buffer
	_, err := d.Dispatch(context.Background(), envFor("x", &buf))
	require.NoError(t, err)
	assert.Equal(t, StateRunning, seen)
	assert.Equal(t, "done", d.State().String())
}
