package stashapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shurcooL/graphql"
)

// Input types are named after the backend's GraphQL input types; the query
// builder derives variable types from the Go type names.

// TagCreateInput is the input of the tagCreate mutation.
type TagCreateInput struct {
	Name graphql.String `json:"name"`
}

// TagDestroyInput is the input of the tagDestroy mutation.
type TagDestroyInput struct {
	ID graphql.ID `json:"id"`
}

// SceneUpdateInput is the input of the sceneUpdate mutation.
type SceneUpdateInput struct {
	ID     graphql.ID   `json:"id"`
	TagIDs []graphql.ID `json:"tag_ids"`
}

// FindFilterType is the paging and sort filter of find queries.
type FindFilterType struct {
	PerPage graphql.Int    `json:"per_page"`
	Sort    graphql.String `json:"sort"`
}

// HTTPClient talks GraphQL over HTTP.
type HTTPClient struct {
	gql *graphql.Client
}

// New returns an HTTPClient for cfg.
func New(cfg Config) *HTTPClient {
	hc := &http.Client{Timeout: cfg.Timeout}
	if cfg.Cookie != nil {
		hc.Transport = &cookieTransport{cookie: cfg.Cookie, base: http.DefaultTransport}
	}
	return &HTTPClient{gql: graphql.NewClient(cfg.Endpoint, hc)}
}

// cookieTransport attaches the session cookie to every request.
type cookieTransport struct {
	cookie *http.Cookie
	base   http.RoundTripper
}

func (t *cookieTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.AddCookie(t.cookie)
	return t.base.RoundTrip(req)
}

// FindTagByName implements Client.
func (c *HTTPClient) FindTagByName(ctx context.Context, name string) (string, error) {
	var q struct {
		FindTags struct {
			Tags []Tag `graphql:"tags"`
		} `graphql:"findTags(tag_filter: {name: {value: $name, modifier: EQUALS}})"`
	}
	vars := map[string]any{"name": graphql.String(name)}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return "", fmt.Errorf("find tag %q: %w", name, err)
	}
	if len(q.FindTags.Tags) == 0 {
		return "", nil
	}
	return q.FindTags.Tags[0].ID, nil
}

// CreateTag implements Client.
func (c *HTTPClient) CreateTag(ctx context.Context, name string) (string, error) {
	var m struct {
		TagCreate struct {
			ID string `graphql:"id"`
		} `graphql:"tagCreate(input: $input)"`
	}
	vars := map[string]any{"input": TagCreateInput{Name: graphql.String(name)}}
	if err := c.gql.Mutate(ctx, &m, vars); err != nil {
		return "", fmt.Errorf("create tag %q: %w", name, err)
	}
	if m.TagCreate.ID == "" {
		return "", fmt.Errorf("create tag %q: server returned no id", name)
	}
	return m.TagCreate.ID, nil
}

// DestroyTag implements Client.
func (c *HTTPClient) DestroyTag(ctx context.Context, id string) error {
	var m struct {
		TagDestroy graphql.Boolean `graphql:"tagDestroy(input: $input)"`
	}
	vars := map[string]any{"input": TagDestroyInput{ID: graphql.ID(id)}}
	if err := c.gql.Mutate(ctx, &m, vars); err != nil {
		return fmt.Errorf("destroy tag %s: %w", id, err)
	}
	return nil
}

// FindRandomScene implements Client.
func (c *HTTPClient) FindRandomScene(ctx context.Context) (*Scene, error) {
	var q struct {
		FindScenes struct {
			Scenes []Scene `graphql:"scenes"`
		} `graphql:"findScenes(filter: $filter)"`
	}
	vars := map[string]any{"filter": FindFilterType{PerPage: 1, Sort: "random"}}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("find random scene: %w", err)
	}
	if len(q.FindScenes.Scenes) == 0 {
		return nil, nil
	}
	s := q.FindScenes.Scenes[0]
	return &s, nil
}

// UpdateScene implements Client.
func (c *HTTPClient) UpdateScene(ctx context.Context, scene SceneUpdate) error {
	var m struct {
		SceneUpdate struct {
			ID string `graphql:"id"`
		} `graphql:"sceneUpdate(input: $input)"`
	}
	in := SceneUpdateInput{ID: graphql.ID(scene.ID), TagIDs: make([]graphql.ID, 0, len(scene.TagIDs))}
	for _, id := range scene.TagIDs {
		in.TagIDs = append(in.TagIDs, graphql.ID(id))
	}
	if err := c.gql.Mutate(ctx, &m, map[string]any{"input": in}); err != nil {
		return fmt.Errorf("update scene %s: %w", scene.ID, err)
	}
	return nil
}
