// Package tagger is the example plugin: a handful of tasks that tag scenes
// through the backend API and exercise the log and progress channel.
package tagger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/plugkit/internal/dispatch"
	"github.com/mattjoyce/plugkit/internal/protocol"
	"github.com/mattjoyce/plugkit/internal/stashapi"
)

// DefaultTagName is used when the invocation has no "tag" argument.
const DefaultTagName = "Hawwwwt"

// TagArg names the argument that overrides DefaultTagName.
const TagArg = "tag"

const (
	ModeAdd    dispatch.Mode = "add"
	ModeRemove dispatch.Mode = "remove"
	ModeLong   dispatch.Mode = "long"
	ModeIndef  dispatch.Mode = "indef"
)

// longSteps is the number of progress records the long task emits.
const longSteps = 100

// ErrNoScenes is returned by the add task when the library is empty.
var ErrNoScenes = errors.New("no scenes found")

// Tagger holds the task set and what it needs to reach the backend.
type Tagger struct {
	newClient stashapi.Factory
	interval  time.Duration
}

// Option configures a Tagger.
type Option func(*Tagger)

// WithProgressInterval sets the pause between progress records of the long
// task. Defaults to one second.
func WithProgressInterval(d time.Duration) Option {
	return func(t *Tagger) {
		t.interval = d
	}
}

// New returns a Tagger creating one backend client per invocation with
// factory.
func New(factory stashapi.Factory, opts ...Option) *Tagger {
	t := &Tagger{newClient: factory, interval: time.Second}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Registry returns the plugin's task table. "add" is the default.
func (t *Tagger) Registry() *dispatch.Registry {
	return dispatch.MustRegistry(ModeAdd,
		dispatch.Entry{Mode: ModeAdd, Task: dispatch.TaskFunc(t.add)},
		dispatch.Entry{Mode: ModeRemove, Task: dispatch.TaskFunc(t.remove)},
		dispatch.Entry{Mode: ModeLong, Task: dispatch.TaskFunc(t.long)},
		dispatch.Entry{Mode: ModeIndef, Task: dispatch.TaskFunc(t.indef)},
	)
}

func tagName(in *protocol.PluginInput) string {
	if name := in.Args.String(TagArg); name != "" {
		return name
	}
	return DefaultTagName
}

func (t *Tagger) add(ctx context.Context, env *dispatch.Env) (*protocol.PluginOutput, error) {
	client := t.newClient(env.Input.ServerConnection)
	name := tagName(env.Input)

	env.Log.Info("Getting random scene")
	scene, err := client.FindRandomScene(ctx)
	if err != nil {
		return nil, err
	}
	if scene == nil {
		return nil, ErrNoScenes
	}
	env.Log.Progress(0.25)

	env.Log.Infof("Finding or creating tag %q", name)
	tagID, err := findOrCreateTag(ctx, client, name)
	if err != nil {
		return nil, err
	}
	env.Log.Progress(0.5)

	if scene.HasTag(tagID) {
		slog.Debug("scene already tagged", "scene.id", scene.ID, "tag.id", tagID)
		env.Log.Progress(1)
		return nil, nil
	}

	env.Log.Infof("Adding tag to scene %s", scene.ID)
	update := stashapi.SceneUpdate{
		ID:     scene.ID,
		TagIDs: append(scene.TagIDs(), tagID),
	}
	env.Log.Progress(0.75)
	if err := client.UpdateScene(ctx, update); err != nil {
		return nil, err
	}
	env.Log.Progress(1)
	return nil, nil
}

func findOrCreateTag(ctx context.Context, client stashapi.Client, name string) (string, error) {
	id, err := client.FindTagByName(ctx, name)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id, err = client.CreateTag(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create missing tag: %w", err)
	}
	return id, nil
}

func (t *Tagger) remove(ctx context.Context, env *dispatch.Env) (*protocol.PluginOutput, error) {
	client := t.newClient(env.Input.ServerConnection)
	name := tagName(env.Input)

	env.Log.Infof("Finding tag %q", name)
	id, err := client.FindTagByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if id == "" {
		env.Log.Info("Tag does not exist. Nothing to remove")
		return nil, nil
	}

	env.Log.Infof("Destroying tag %s", id)
	if err := client.DestroyTag(ctx, id); err != nil {
		return nil, err
	}
	return nil, nil
}

func (t *Tagger) long(ctx context.Context, env *dispatch.Env) (*protocol.PluginOutput, error) {
	env.Log.Info("Sleeping for 100 steps")

	var tick <-chan time.Time
	if t.interval > 0 {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; i < longSteps; i++ {
		env.Log.Progress(float64(i) / longSteps)
		if tick == nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-tick:
		}
	}
	return nil, nil
}

// indef never finishes on its own; only cancellation ends it, and that is
// reported as a failure.
func (t *Tagger) indef(ctx context.Context, env *dispatch.Env) (*protocol.PluginOutput, error) {
	env.Log.Warn("Sleeping indefinitely")
	<-ctx.Done()
	return nil, ctx.Err()
}
