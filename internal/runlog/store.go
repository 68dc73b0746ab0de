// Package runlog records plugin runs, their progress and their log output in
// SQLite.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxStderrBytes caps the stderr text stored with a run.
const MaxStderrBytes = 64 * 1024

const defaultListLimit = 50

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a running run and returns its ID.
func (s *Store) Create(ctx context.Context, req CreateRequest) (string, error) {
	if req.Plugin == "" {
		return "", fmt.Errorf("plugin is empty")
	}
	if req.Task == "" {
		return "", fmt.Errorf("task is empty")
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	args := "{}"
	if len(req.Args) > 0 {
		if !json.Valid(req.Args) {
			return "", fmt.Errorf("args are not valid JSON")
		}
		args = string(req.Args)
	}
	now := time.Now().UTC().Format(timeFormat)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO plugin_runs(id, plugin, task, manifest_hash, args, status, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, id, req.Plugin, req.Task, nullable(req.ManifestHash), args, StatusRunning, now)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// UpdateProgress stores the latest progress fraction of a running run.
func (s *Store) UpdateProgress(ctx context.Context, runID string, fraction float64) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE plugin_runs SET progress = ? WHERE id = ? AND status = ?;
`, fraction, runID, StatusRunning)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return expectRow(res, runID)
}

// AppendLog adds a log record to a run.
func (s *Store) AppendLog(ctx context.Context, runID, level, message string) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO run_logs(run_id, seq, level, message, logged_at)
SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?
FROM run_logs
WHERE run_id = ?;
`, runID, level, message, now, runID)
	if err != nil {
		return fmt.Errorf("append run log: %w", err)
	}
	return nil
}

// Complete marks a running run terminal.
func (s *Store) Complete(ctx context.Context, runID string, c Completion) error {
	if runID == "" {
		return fmt.Errorf("runID is empty")
	}
	if !c.Status.Terminal() {
		return fmt.Errorf("invalid terminal status: %q", c.Status)
	}

	var stderrVal any
	if c.Stderr != nil {
		stderrVal = truncateUTF8(*c.Stderr, MaxStderrBytes)
	}
	progress := "progress"
	if c.Status == StatusSucceeded {
		progress = "1"
	}

	completedAt := time.Now().UTC().Format(timeFormat)
	res, err := s.db.ExecContext(ctx, `
UPDATE plugin_runs
SET status = ?, exit_code = ?, output = ?, error = ?, stderr = ?, completed_at = ?, progress = `+progress+`
WHERE id = ? AND status = ?;
`, c.Status, c.ExitCode, c.Output, c.Error, stderrVal, completedAt, runID, StatusRunning)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return expectRow(res, runID)
}

const runColumns = `id, plugin, task, manifest_hash, args, status, progress, exit_code, output, error, stderr, created_at, completed_at`

// Get loads one run.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM plugin_runs WHERE id = ?;`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if f.Plugin != "" {
		where = append(where, "plugin = ?")
		args = append(args, f.Plugin)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := `SELECT ` + runColumns + ` FROM plugin_runs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, rowid DESC LIMIT ?;"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// Logs returns a run's log records in emission order.
func (s *Store) Logs(ctx context.Context, runID string) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, level, message, logged_at FROM run_logs WHERE run_id = ? ORDER BY seq ASC;
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var (
			e        LogEntry
			loggedAt string
		)
		if err := rows.Scan(&e.Seq, &e.Level, &e.Message, &loggedAt); err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, loggedAt); err == nil {
			e.LoggedAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r            Run
		manifestHash sql.NullString
		args         string
		status       string
		exitCode     sql.NullInt64
		output       sql.NullString
		errMsg       sql.NullString
		stderr       sql.NullString
		createdAt    string
		completedAt  sql.NullString
	)
	if err := row.Scan(
		&r.ID, &r.Plugin, &r.Task, &manifestHash, &args, &status, &r.Progress,
		&exitCode, &output, &errMsg, &stderr, &createdAt, &completedAt,
	); err != nil {
		return nil, err
	}

	r.ManifestHash = manifestHash.String
	r.Args = json.RawMessage(args)
	r.Status = Status(status)
	if exitCode.Valid {
		v := int(exitCode.Int64)
		r.ExitCode = &v
	}
	if output.Valid {
		r.Output = &output.String
	}
	if errMsg.Valid {
		r.Error = &errMsg.String
	}
	if stderr.Valid {
		r.Stderr = &stderr.String
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		r.CreatedAt = t
	}
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
			r.CompletedAt = &t
		}
	}
	return &r, nil
}

func expectRow(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrRunNotActive)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
