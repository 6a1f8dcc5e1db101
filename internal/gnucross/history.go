package gnucross

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Step statuses stored in the history.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusAborted = "aborted"
)

// StepRecord describes one executed configure or make step.
type StepRecord struct {
	RunID    string        `yaml:"-"`
	Package  string        `yaml:"package"`
	Stage    string        `yaml:"stage,omitempty"`
	Relation string        `yaml:"relation"`
	Verb     string        `yaml:"verb"`
	Command  string        `yaml:"command"`
	Dir      string        `yaml:"dir"`
	LogPath  string        `yaml:"log"`
	Status   string        `yaml:"status"`
	Started  time.Time     `yaml:"started"`
	Duration time.Duration `yaml:"duration"`
}

// StepRecorder persists step records.
type StepRecorder interface {
	Record(ctx context.Context, rec StepRecord) error
}

// History is the sqlite-backed log of every step ever run in a tree.
type History struct {
	db *sql.DB
}

const historySchema = `
CREATE TABLE IF NOT EXISTS steps (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id   TEXT NOT NULL,
	package  TEXT NOT NULL,
	stage    TEXT NOT NULL,
	relation TEXT NOT NULL,
	verb     TEXT NOT NULL,
	command  TEXT NOT NULL,
	dir      TEXT NOT NULL,
	log_path TEXT NOT NULL,
	status   TEXT NOT NULL,
	started  INTEGER NOT NULL,
	duration INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS steps_run ON steps(run_id);
`

// OpenHistory opens (creating if needed) the history database at path.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history %s: %w", path, err)
	}
	return &History{db: db}, nil
}

func (h *History) Close() error { return h.db.Close() }

var _ StepRecorder = (*History)(nil)

func (h *History) Record(ctx context.Context, rec StepRecord) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO steps (run_id, package, stage, relation, verb, command, dir, log_path, status, started, duration)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Package, rec.Stage, rec.Relation, rec.Verb, rec.Command, rec.Dir,
		rec.LogPath, rec.Status, rec.Started.UnixNano(), int64(rec.Duration))
	return err
}

// LatestRunID returns the run id of the most recently recorded step, or ""
// when the history is empty.
func (h *History) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := h.db.QueryRowContext(ctx, `SELECT run_id FROM steps ORDER BY id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// Steps returns the steps of runID in execution order; an empty runID
// returns every recorded step.
func (h *History) Steps(ctx context.Context, runID string) ([]StepRecord, error) {
	query := `SELECT run_id, package, stage, relation, verb, command, dir, log_path, status, started, duration FROM steps`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id`

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []StepRecord
	for rows.Next() {
		var rec StepRecord
		var started, duration int64
		if err := rows.Scan(&rec.RunID, &rec.Package, &rec.Stage, &rec.Relation, &rec.Verb,
			&rec.Command, &rec.Dir, &rec.LogPath, &rec.Status, &started, &duration); err != nil {
			return nil, err
		}
		rec.Started = time.Unix(0, started)
		rec.Duration = time.Duration(duration)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
