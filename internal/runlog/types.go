package runlog

import (
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusRunning       Status = "running"
	StatusSucceeded     Status = "succeeded"
	StatusFailed        Status = "failed"
	StatusProtocolError Status = "protocol_error"
	StatusTimedOut      Status = "timed_out"
	StatusCancelled     Status = "cancelled"
)

// Terminal reports whether a run in this status is finished.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusProtocolError, StatusTimedOut, StatusCancelled:
		return true
	}
	return false
}

// Run is one plugin invocation as recorded by the host.
type Run struct {
	ID           string          `json:"id"`
	Plugin       string          `json:"plugin"`
	Task         string          `json:"task"`
	ManifestHash string          `json:"manifest_hash,omitempty"`
	Args         json.RawMessage `json:"args"`
	Status       Status          `json:"status"`
	Progress     float64         `json:"progress"`
	ExitCode     *int            `json:"exit_code,omitempty"`
	Output       *string         `json:"output,omitempty"`
	Error        *string         `json:"error,omitempty"`
	Stderr       *string         `json:"stderr,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// CreateRequest starts a run record. ID is generated when empty.
type CreateRequest struct {
	ID           string
	Plugin       string
	Task         string
	ManifestHash string
	Args         json.RawMessage
}

// Completion is the terminal outcome of a run.
type Completion struct {
	Status   Status
	ExitCode *int
	Output   *string
	Error    *string
	Stderr   *string
}

// LogEntry is one log record a run emitted.
type LogEntry struct {
	Seq      int       `json:"seq"`
	Level    string    `json:"level"`
	Message  string    `json:"message"`
	LoggedAt time.Time `json:"logged_at"`
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	Plugin string
	Status Status
	Limit  int
}

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunNotActive = errors.New("run not found or already completed")
)
