package protocol

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ModeKey is the argument key that selects the task a plugin runs.
const ModeKey = "mode"

// PluginInput is the invocation payload sent to a plugin via stdin.
type PluginInput struct {
	ServerConnection ServerConnection `json:"server_connection"`
	Args             ArgsMap          `json:"args"`
}

// Mode returns the requested mode, or "" when none was given.
func (in *PluginInput) Mode() string {
	return in.Args.String(ModeKey)
}

// ServerConnection describes how a plugin reaches the host's backend API.
// Field names are serialized verbatim to stay compatible with existing hosts.
type ServerConnection struct {
	Scheme        string         `json:"Scheme"`
	Host          string         `json:"Host,omitempty"`
	Port          int            `json:"Port"`
	SessionCookie *SessionCookie `json:"SessionCookie,omitempty"`
	Dir           string         `json:"Dir,omitempty"`
	PluginDir     string         `json:"PluginDir,omitempty"`
}

// SessionCookie is the opaque session credential handed to a plugin.
type SessionCookie struct {
	Name     string    `json:"Name,omitempty"`
	Value    string    `json:"Value"`
	Path     string    `json:"Path,omitempty"`
	Domain   string    `json:"Domain,omitempty"`
	Expires  time.Time `json:"Expires,omitzero"`
	HttpOnly bool      `json:"HttpOnly,omitempty"`
}

// URL returns the base URL of the backend described by the connection.
// An empty host means localhost.
func (c ServerConnection) URL() *url.URL {
	host := c.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	scheme := c.Scheme
	if scheme == "" {
		scheme = "http"
	}
	u := &url.URL{Scheme: scheme, Host: host}
	if c.Port > 0 {
		u.Host = host + ":" + strconv.Itoa(c.Port)
	}
	return u
}

// ArgsMap holds invocation arguments. Values arrive as JSON scalars; the
// accessors coerce them so plugins don't have to care how the host typed them.
type ArgsMap map[string]any

// String returns the value for key rendered as a string, or "" if absent.
func (m ArgsMap) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Int returns the value for key as an int, or 0 if absent or not numeric.
func (m ArgsMap) Int(key string) int {
	switch t := m[key].(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		n, _ := strconv.Atoi(t)
		return n
	}
	return 0
}

// Float returns the value for key as a float64, or 0 if absent or not numeric.
func (m ArgsMap) Float(key string) float64 {
	switch t := m[key].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	}
	return 0
}

// Bool returns the value for key as a bool. Strings are parsed with strconv.
func (m ArgsMap) Bool(key string) bool {
	switch t := m[key].(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}

// PluginOutput is the single result payload a plugin writes to stdout.
// Exactly one of Output and Error is set; Extra carries task-specific keys.
type PluginOutput struct {
	Output *string
	Error  *string
	Extra  map[string]any
}

// OK returns a successful output carrying msg.
func OK(msg string) *PluginOutput {
	return &PluginOutput{Output: &msg}
}

// Failed returns an error output carrying msg.
func Failed(msg string) *PluginOutput {
	return &PluginOutput{Error: &msg}
}

// IsError reports whether the output describes a failure.
func (o *PluginOutput) IsError() bool {
	return o.Error != nil
}
