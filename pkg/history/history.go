// Package history keeps a SQLite log of pipeline runs so results can be
// compared across rule changes.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/semgeo/semgeo/pkg/pipeline"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run id is not in the history.
var ErrNotFound = errors.New("run not found")

// Run is the summary row of one recorded run.
type Run struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	State      string        `json:"state"`
	Scenarios  []string      `json:"scenarios"`
	Triples    int           `json:"triples"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Output     string        `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Succeeded reports whether the run finished without a fatal error.
func (r Run) Succeeded() bool {
	return r.State == string(pipeline.StateDone) && r.Error == ""
}

// Store is a run history backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		duration_ns INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL,
		scenarios JSON NOT NULL,
		triples INTEGER NOT NULL DEFAULT 0,
		passed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		output TEXT,
		error TEXT,
		report JSON NOT NULL
	);

	CREATE TABLE IF NOT EXISTS test_outcomes (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		scenario TEXT,
		entity TEXT NOT NULL,
		category TEXT NOT NULL,
		source TEXT NOT NULL,
		passed INTEGER NOT NULL,
		rows INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		PRIMARY KEY (run_id, seq),
		FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_test_outcomes_source ON test_outcomes(source);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a report and its test outcomes. Recording the same run id
// again replaces the earlier entry.
func (s *Store) Record(ctx context.Context, report *pipeline.Report) error {
	if report == nil || report.RunID == "" {
		return errors.New("report has no run id")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	scenarios := make([]string, 0, len(report.Scenarios))
	for _, summary := range report.Scenarios {
		scenarios = append(scenarios, summary.Name)
	}
	scenarioJSON, err := json.Marshal(scenarios)
	if err != nil {
		return fmt.Errorf("failed to marshal scenarios: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM test_outcomes WHERE run_id = ?`, report.RunID); err != nil {
		return fmt.Errorf("failed to clear test outcomes: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(run_id, started_at, finished_at, duration_ns, state, scenarios, triples, passed, failed, output, error, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		formatTime(report.StartedAt),
		stringToNull(formatTime(report.FinishedAt)),
		int64(report.Duration),
		string(report.State),
		string(scenarioJSON),
		report.Triples,
		report.Passed(),
		report.Failed(),
		stringToNull(report.Output),
		stringToNull(report.Error),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO test_outcomes (run_id, seq, scenario, entity, category, source, passed, rows, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, test := range report.Tests {
		_, err := stmt.ExecContext(ctx,
			report.RunID,
			i,
			stringToNull(test.Scenario),
			test.Key.Entity,
			string(test.Key.Category),
			test.Source,
			boolToInt(test.Passed),
			test.Rows,
			stringToNull(test.Error),
		)
		if err != nil {
			return fmt.Errorf("failed to insert test outcome: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List returns the most recent runs first. A limit of zero or less returns
// every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT run_id, started_at, finished_at, duration_ns, state, scenarios, triples, passed, failed, output, error
		FROM runs
		ORDER BY started_at DESC, run_id
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Get returns the full report recorded for runID.
func (s *Store) Get(ctx context.Context, runID string) (*pipeline.Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	var report pipeline.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// Failures returns how often each test rule failed over the recorded runs,
// keyed by rule source.
func (s *Store) Failures(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, COUNT(*) FROM test_outcomes
		WHERE passed = 0
		GROUP BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query test outcomes: %w", err)
	}
	defer rows.Close()

	failures := make(map[string]int)
	for rows.Next() {
		var (
			source string
			count  int
		)
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan test outcome: %w", err)
		}
		failures[source] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating test outcomes: %w", err)
	}
	return failures, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run                 Run
		startedAt           string
		finishedAt          sql.NullString
		durationNS          int64
		scenarios           string
		output, errorString sql.NullString
	)
	if err := rows.Scan(&run.RunID, &startedAt, &finishedAt, &durationNS, &run.State, &scenarios,
		&run.Triples, &run.Passed, &run.Failed, &output, &errorString); err != nil {
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, err
	}
	if finishedAt.Valid {
		if run.FinishedAt, err = parseTime(finishedAt.String); err != nil {
			return Run{}, err
		}
	}
	if err := json.Unmarshal([]byte(scenarios), &run.Scenarios); err != nil {
		return Run{}, fmt.Errorf("failed to unmarshal scenarios: %w", err)
	}
	run.Duration = time.Duration(durationNS)
	run.Output = nullToString(output)
	run.Error = nullToString(errorString)
	return run, nil
}
