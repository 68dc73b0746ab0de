package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeInput(t *testing.T) {
	tests := []struct {
		name    string
		in      *PluginInput
		wantErr bool
		checkFn func(t *testing.T, output string)
	}{
		{
			name: "mode and connection",
			in: &PluginInput{
				ServerConnection: ServerConnection{Scheme: "http", Port: 9999},
				Args:             ArgsMap{"mode": "add"},
			},
			checkFn: func(t *testing.T, output string) {
				if !strings.Contains(output, `"args":{"mode":"add"}`) {
					t.Error("missing args.mode")
				}
				if !strings.Contains(output, `"Scheme":"http"`) {
					t.Error("missing server_connection.Scheme")
				}
				if !strings.Contains(output, `"Port":9999`) {
					t.Error("missing server_connection.Port")
				}
				if strings.Contains(output, "SessionCookie") {
					t.Error("SessionCookie should be omitted when unset")
				}
			},
		},
		{
			name: "with session cookie",
			in: &PluginInput{
				ServerConnection: ServerConnection{
					Scheme:        "https",
					Port:          443,
					SessionCookie: &SessionCookie{Name: "session", Value: "abc"},
				},
				Args: ArgsMap{"mode": "remove"},
			},
			checkFn: func(t *testing.T, output string) {
				if !strings.Contains(output, `"SessionCookie":{"Name":"session","Value":"abc"}`) {
					t.Errorf("unexpected cookie encoding: %s", output)
				}
			},
		},
		{
			name:    "nil input",
			in:      nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := EncodeInput(&buf, tt.in)

			if (err != nil) != tt.wantErr {
				t.Errorf("EncodeInput() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.checkFn != nil {
				tt.checkFn(t, buf.String())
			}
		})
	}
}

func TestDecodeInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		checkFn func(t *testing.T, in *PluginInput)
	}{
		{
			name:  "full payload",
			input: `{"args":{"mode":"long"},"server_connection":{"Scheme":"http","Port":9999,"SessionCookie":{"Value":"c00kie"}}}`,
			checkFn: func(t *testing.T, in *PluginInput) {
				assert.Equal(t, "long", in.Mode())
				assert.Equal(t, "http", in.ServerConnection.Scheme)
				assert.Equal(t, 9999, in.ServerConnection.Port)
				require.NotNil(t, in.ServerConnection.SessionCookie)
				assert.Equal(t, "c00kie", in.ServerConnection.SessionCookie.Value)
			},
		},
		{
			name:  "missing args yields empty map",
			input: `{"server_connection":{"Scheme":"http","Port":1}}`,
			checkFn: func(t *testing.T, in *PluginInput) {
				assert.NotNil(t, in.Args)
				assert.Equal(t, "", in.Mode())
			},
		},
		{
			name:    "malformed JSON",
			input:   `{"args":`,
			wantErr: true,
		},
		{
			name:    "empty stream",
			input:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			input:   "  \n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeInput(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeInput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.checkFn != nil {
				tt.checkFn(t, in)
			}
		})
	}
}

func TestEncodeOutput(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, EncodeOutput(&buf, OK("ok")))
		assert.Equal(t, "{\"output\":\"ok\"}\n", buf.String())
	})

	t.Run("error", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, EncodeOutput(&buf, Failed("boom")))
		assert.Equal(t, "{\"error\":\"boom\"}\n", buf.String())
	})

	t.Run("extra keys cannot shadow result", func(t *testing.T) {
		out := OK("ok")
		out.Extra = map[string]any{"output": "shadow", "tagged": 3}
		var buf bytes.Buffer
		require.NoError(t, EncodeOutput(&buf, out))
		assert.JSONEq(t, `{"output":"ok","tagged":3}`, buf.String())
	})

	t.Run("neither output nor error", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, EncodeOutput(&buf, &PluginOutput{}))
		assert.Zero(t, buf.Len())
	})

	t.Run("both output and error", func(t *testing.T) {
		out := OK("ok")
		out.Error = Failed("boom").Error
		var buf bytes.Buffer
		assert.Error(t, EncodeOutput(&buf, out))
	})
}

func TestDecodeOutput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		checkFn func(t *testing.T, out *PluginOutput)
	}{
		{
			name:  "ok output",
			input: "{\"output\":\"ok\"}\n",
			checkFn: func(t *testing.T, out *PluginOutput) {
				require.NotNil(t, out.Output)
				assert.Equal(t, "ok", *out.Output)
				assert.False(t, out.IsError())
			},
		},
		{
			name:  "error output",
			input: `{"error":"scene not found"}`,
			checkFn: func(t *testing.T, out *PluginOutput) {
				assert.True(t, out.IsError())
				assert.Equal(t, "scene not found", *out.Error)
			},
		},
		{
			name:  "non-string output kept as raw JSON",
			input: `{"output":{"count":2}}`,
			checkFn: func(t *testing.T, out *PluginOutput) {
				require.NotNil(t, out.Output)
				assert.JSONEq(t, `{"count":2}`, *out.Output)
			},
		},
		{
			name:  "extra keys",
			input: `{"output":"ok","scene_id":"12"}`,
			checkFn: func(t *testing.T, out *PluginOutput) {
				assert.Equal(t, "12", out.Extra["scene_id"])
			},
		},
		{
			name:    "no result keys",
			input:   `{"status":"ok"}`,
			wantErr: true,
		},
		{
			name:    "two payloads",
			input:   "{\"output\":\"ok\"}\n{\"output\":\"ok\"}\n",
			wantErr: true,
		},
		{
			name:    "not JSON",
			input:   "hello",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DecodeOutput(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.checkFn != nil {
				tt.checkFn(t, out)
			}
		})
	}
}

func TestDecodeOutputLenient(t *testing.T) {
	_, raw, err := DecodeOutputLenient(strings.NewReader("not json at all"))
	assert.Error(t, err)
	assert.Equal(t, "not json at all", string(raw))
}

func TestArgsMapAccessors(t *testing.T) {
	args := ArgsMap{
		"mode":   "add",
		"count":  float64(3),
		"ratio":  "0.5",
		"dry":    true,
		"strDry": "true",
		"nil":    nil,
	}

	assert.Equal(t, "add", args.String("mode"))
	assert.Equal(t, "3", args.String("count"))
	assert.Equal(t, "true", args.String("dry"))
	assert.Equal(t, "", args.String("nil"))
	assert.Equal(t, "", args.String("missing"))
	assert.Equal(t, 3, args.Int("count"))
	assert.Equal(t, 0.5, args.Float("ratio"))
	assert.True(t, args.Bool("dry"))
	assert.True(t, args.Bool("strDry"))
	assert.False(t, args.Bool("missing"))
}

func TestServerConnectionURL(t *testing.T) {
	tests := []struct {
		conn ServerConnection
		want string
	}{
		{ServerConnection{Scheme: "http", Port: 9999}, "http://localhost:9999"},
		{ServerConnection{Scheme: "https", Host: "stash.lan", Port: 443}, "https://stash.lan:443"},
		{ServerConnection{Host: "0.0.0.0"}, "http://localhost"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.conn.URL().String())
	}
}
