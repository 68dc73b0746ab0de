// Package stashapi is a small GraphQL client for the host's backend API,
// built per invocation from the connection details the host hands over.
package stashapi

import (
	"context"
	"net/http"
	"time"

	"github.com/mattjoyce/plugkit/internal/protocol"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/mattjoyce/plugkit/internal/stashapi Client

// Client is the subset of the backend API the example tasks use.
type Client interface {
	// FindTagByName returns the tag's ID, or "" if there is none.
	FindTagByName(ctx context.Context, name string) (string, error)
	CreateTag(ctx context.Context, name string) (string, error)
	DestroyTag(ctx context.Context, id string) error
	// FindRandomScene returns nil when the library has no scenes.
	FindRandomScene(ctx context.Context) (*Scene, error)
	UpdateScene(ctx context.Context, scene SceneUpdate) error
}

// Scene is the part of a scene record the tasks need.
type Scene struct {
	ID    string `json:"id" graphql:"id"`
	Title string `json:"title" graphql:"title"`
	Tags  []Tag  `json:"tags" graphql:"tags"`
}

// TagIDs returns the IDs of the scene's tags.
func (s *Scene) TagIDs() []string {
	ids := make([]string, 0, len(s.Tags))
	for _, t := range s.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// HasTag reports whether the scene already carries the tag.
func (s *Scene) HasTag(id string) bool {
	for _, t := range s.Tags {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Tag is a tag reference.
type Tag struct {
	ID   string `json:"id" graphql:"id"`
	Name string `json:"name,omitempty" graphql:"name"`
}

// SceneUpdate is the mutation input for a scene.
type SceneUpdate struct {
	ID     string   `json:"id"`
	TagIDs []string `json:"tag_ids"`
}

// Config is the immutable connection configuration of one client.
type Config struct {
	Endpoint string
	Cookie   *http.Cookie
	Timeout  time.Duration
}

// ConfigFromConnection derives a client config from the invocation's server
// connection.
func ConfigFromConnection(conn protocol.ServerConnection) Config {
	cfg := Config{
		Endpoint: conn.URL().JoinPath("graphql").String(),
		Timeout:  30 * time.Second,
	}
	if c := conn.SessionCookie; c != nil && c.Value != "" {
		name := c.Name
		if name == "" {
			name = "session"
		}
		cfg.Cookie = &http.Cookie{
			Name:     name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			HttpOnly: c.HttpOnly,
		}
	}
	return cfg
}

// Factory builds a client for an invocation's connection.
type Factory func(conn protocol.ServerConnection) Client

// HTTPFactory builds HTTP clients.
func HTTPFactory(conn protocol.ServerConnection) Client {
	return New(ConfigFromConnection(conn))
}
