package tagger

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/plugkit/internal/pluginio"
	"github.com/mattjoyce/plugkit/internal/protocol"
	"github.com/mattjoyce/plugkit/internal/stashapi"
	"github.com/mattjoyce/plugkit/internal/stashapi/mocks"
)

type result struct {
	code    int
	stdout  string
	records []string
}

func run(t *testing.T, ctx context.Context, tg *Tagger, args []string, stdin string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := pluginio.Run(ctx, pluginio.Env{
		Args:   args,
		Stdin:  strings.NewReader(stdin),
		Stdout: &stdout,
		Stderr: &stderr,
	}, tg.Registry())

	var records []string
	sc := bufio.NewScanner(&stderr)
	for sc.Scan() {
		level, msg, ok := protocol.DecodeFrame(sc.Bytes())
		require.True(t, ok, "unframed stderr line %q", sc.Text())
		records = append(records, string(level)+":"+msg)
	}
	return result{code: code, stdout: stdout.String(), records: records}
}

func factoryFor(c stashapi.Client, calls *int) stashapi.Factory {
	return func(protocol.ServerConnection) stashapi.Client {
		if calls != nil {
			*calls++
		}
		return c
	}
}

func progressRecords(records []string) []string {
	var out []string
	for _, r := range records {
		if v, ok := strings.CutPrefix(r, "progress:"); ok {
			out = append(out, v)
		}
	}
	return out
}

func TestAddTagsRandomScene(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	gomock.InOrder(
		client.EXPECT().FindRandomScene(gomock.Any()).Return(&stashapi.Scene{
			ID:   "12",
			Tags: []stashapi.Tag{{ID: "1"}},
		}, nil),
		client.EXPECT().FindTagByName(gomock.Any(), DefaultTagName).Return("", nil),
		client.EXPECT().CreateTag(gomock.Any(), DefaultTagName).Return("99", nil),
		client.EXPECT().UpdateScene(gomock.Any(), stashapi.SceneUpdate{ID: "12", TagIDs: []string{"1", "99"}}).Return(nil),
	)

	res := run(t, context.Background(), New(factoryFor(client, nil)), []string{"add"}, "")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "{\"output\":\"ok\"}\n", res.stdout)
	assert.Equal(t, []string{"0.25", "0.5", "0.75", "1"}, progressRecords(res.records))
}

func TestAddIsDefaultMode(t *testing.T) {
	for _, stdin := range []string{`{"args":{"mode":""}}`, `{"args":{}}`} {
		t.Run(stdin, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl)
			client.EXPECT().FindRandomScene(gomock.Any()).Return(&stashapi.Scene{ID: "1"}, nil)
			client.EXPECT().FindTagByName(gomock.Any(), DefaultTagName).Return("5", nil)
			client.EXPECT().UpdateScene(gomock.Any(), stashapi.SceneUpdate{ID: "1", TagIDs: []string{"5"}}).Return(nil)

			res := run(t, context.Background(), New(factoryFor(client, nil)), nil, stdin)
			assert.Equal(t, 0, res.code)
			assert.Equal(t, "{\"output\":\"ok\"}\n", res.stdout)
		})
	}
}

func TestAddSkipsUpdateWhenAlreadyTagged(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().FindRandomScene(gomock.Any()).Return(&stashapi.Scene{ID: "1", Tags: []stashapi.Tag{{ID: "5"}}}, nil)
	client.EXPECT().FindTagByName(gomock.Any(), "custom").Return("5", nil)

	res := run(t, context.Background(), New(factoryFor(client, nil)), nil, `{"args":{"mode":"add","tag":"custom"}}`)
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "{\"output\":\"ok\"}\n", res.stdout)
}

func TestAddEmptyLibraryFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().FindRandomScene(gomock.Any()).Return(nil, nil)

	res := run(t, context.Background(), New(factoryFor(client, nil)), []string{"add"}, "")
	assert.Equal(t, 1, res.code)
	assert.Empty(t, res.stdout)
	require.NotEmpty(t, res.records)
	assert.Contains(t, res.records[len(res.records)-1], ErrNoScenes.Error())
}

func TestBackendFailureCrashes(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().FindRandomScene(gomock.Any()).Return(nil, errors.New("connection refused"))

	res := run(t, context.Background(), New(factoryFor(client, nil)), []string{"add"}, "")
	assert.Equal(t, 1, res.code)
	assert.Empty(t, res.stdout, "no result on task failure")
	assert.True(t, strings.HasPrefix(res.records[len(res.records)-1], "error:"))
}

func TestRemoveDestroysExistingTag(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().FindTagByName(gomock.Any(), DefaultTagName).Return("7", nil)
	client.EXPECT().DestroyTag(gomock.Any(), "7").Return(nil)

	res := run(t, context.Background(), New(factoryFor(client, nil)), []string{"remove"}, "")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "{\"output\":\"ok\"}\n", res.stdout)
}

func TestRemoveMissingTagIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().FindTagByName(gomock.Any(), DefaultTagName).Return("", nil)

	res := run(t, context.Background(), New(factoryFor(client, nil)), []string{"remove"}, "")
	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.records, "info:Tag does not exist. Nothing to remove")
}

func TestUnknownModeMakesNoBackendCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	var built int

	res := run(t, context.Background(), New(factoryFor(client, &built)), []string{"frobnicate"}, "")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "{\"output\":\"ok\"}\n", res.stdout)
	assert.Empty(t, res.records)
	assert.Zero(t, built)
}

func TestLongEmitsHundredProgressRecords(t *testing.T) {
	tg := New(factoryFor(nil, nil), WithProgressInterval(0))

	res := run(t, context.Background(), tg, []string{"long"}, "")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "{\"output\":\"ok\"}\n", res.stdout)

	progress := progressRecords(res.records)
	require.Len(t, progress, 100)
	assert.Equal(t, "0", progress[0])
	assert.Equal(t, "0.99", progress[99])

	prev := -1.0
	for _, p := range progress {
		f, err := strconv.ParseFloat(p, 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, f, prev)
		prev = f
	}
}

func TestLongStopsOnCancel(t *testing.T) {
	tg := New(factoryFor(nil, nil), WithProgressInterval(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := run(t, ctx, tg, []string{"long"}, "")
	assert.Equal(t, 1, res.code)
	assert.Empty(t, res.stdout)
	assert.Len(t, progressRecords(res.records), 1)
}

func TestIndefWarnsAndNeverProducesOutput(t *testing.T) {
	tg := New(factoryFor(nil, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := run(t, ctx, tg, []string{"indef"}, "")
	assert.Equal(t, 1, res.code)
	assert.Empty(t, res.stdout)
	require.NotEmpty(t, res.records)
	assert.Equal(t, "warning:Sleeping indefinitely", res.records[0])
	for _, r := range res.records[1:] {
		assert.True(t, strings.HasPrefix(r, "error:"), "unexpected record %q", r)
	}
}

func TestRegistryModes(t *testing.T) {
	reg := New(stashapi.HTTPFactory).Registry()
	assert.Equal(t, ModeAdd, reg.Default())
	assert.ElementsMatch(t, []string{"add", "remove", "long", "indef"}, modeStrings(reg.Modes()))
}

func modeStrings[T ~string](modes []T) []string {
	out := make([]string, len(modes))
	for i, m := range modes {
		out[i] = string(m)
	}
	return out
}
