package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active',
    total_assignments INTEGER NOT NULL DEFAULT 0,
    winner TEXT,
    winning_rate REAL,
    confidence REAL,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_experiments_status ON experiments(status);
CREATE INDEX IF NOT EXISTS idx_experiments_category ON experiments(category);

CREATE TABLE IF NOT EXISTS variants (
    experiment_id TEXT NOT NULL,
    id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    name TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    traffic_pct REAL NOT NULL,
    assignments INTEGER NOT NULL DEFAULT 0,
    responses INTEGER NOT NULL DEFAULT 0,
    interviews INTEGER NOT NULL DEFAULT 0,
    offers INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (experiment_id, id),
    FOREIGN KEY (experiment_id) REFERENCES experiments(id)
);

CREATE TABLE IF NOT EXISTS outcome_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    experiment_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (experiment_id) REFERENCES experiments(id)
);

CREATE INDEX IF NOT EXISTS idx_events_experiment ON outcome_events(experiment_id);
CREATE INDEX IF NOT EXISTS idx_events_experiment_kind ON outcome_events(experiment_id, kind);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateExperiment(ctx context.Context, exp *Experiment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO experiments (id, name, category, status, total_assignments, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.Name, exp.Category, string(exp.Status), exp.TotalAssignments, exp.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert experiment: %w", err)
	}

	for i, v := range exp.Variants {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO variants (experiment_id, id, ordinal, name, content, traffic_pct)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			exp.ID, v.ID, i, v.Name, v.Content, v.TrafficPct,
		)
		if err != nil {
			return fmt.Errorf("failed to insert variant %s: %w", v.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit experiment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetExperiment(ctx context.Context, id string) (*Experiment, error) {
	exp, err := s.scanExperiment(s.db.QueryRowContext(ctx,
		`SELECT id, name, category, status, total_assignments, winner, winning_rate, confidence, created_at, completed_at
		 FROM experiments WHERE id = ?`, id,
	))
	if err != nil {
		return nil, err
	}

	if err := s.loadVariants(ctx, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

func (s *SQLiteStore) ListExperiments(ctx context.Context) ([]*Experiment, error) {
	return s.listWhere(ctx, "")
}

func (s *SQLiteStore) ListActive(ctx context.Context) ([]*Experiment, error) {
	return s.listWhere(ctx, string(StatusActive))
}

func (s *SQLiteStore) listWhere(ctx context.Context, status string) ([]*Experiment, error) {
	query := `SELECT id, name, category, status, total_assignments, winner, winning_rate, confidence, created_at, completed_at
	          FROM experiments`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	var exps []*Experiment
	for rows.Next() {
		exp, err := s.scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		exps = append(exps, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate experiments: %w", err)
	}

	for _, exp := range exps {
		if err := s.loadVariants(ctx, exp); err != nil {
			return nil, err
		}
	}
	return exps, nil
}

// UpdateExperiment overwrites the experiment's mutable state (status, winner,
// counters) and every variant's counters in one transaction. Idempotent: a
// replayed write leaves the same state.
func (s *SQLiteStore) UpdateExperiment(ctx context.Context, exp *Experiment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var completedAt sql.NullInt64
	if exp.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: exp.CompletedAt.Unix(), Valid: true}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE experiments
		 SET status = ?, total_assignments = ?, winner = ?, winning_rate = ?, confidence = ?, completed_at = ?
		 WHERE id = ?`,
		string(exp.Status), exp.TotalAssignments,
		nullableText(exp.Winner), nullableReal(exp.WinningRate), nullableReal(exp.Confidence),
		completedAt, exp.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update experiment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	for _, v := range exp.Variants {
		_, err = tx.ExecContext(ctx,
			`UPDATE variants SET assignments = ?, responses = ?, interviews = ?, offers = ?
			 WHERE experiment_id = ? AND id = ?`,
			v.Assignments, v.Responses, v.Interviews, v.Offers, exp.ID, v.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update variant %s: %w", v.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendOutcome(ctx context.Context, event *OutcomeEvent) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO outcome_events (experiment_id, variant_id, kind, detail, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		event.ExperimentID, event.VariantID, event.Kind, event.Detail, event.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append outcome: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id
	return nil
}

func (s *SQLiteStore) GetOutcomes(ctx context.Context, experimentID string) ([]*OutcomeEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, experiment_id, variant_id, kind, detail, created_at
		 FROM outcome_events WHERE experiment_id = ? ORDER BY id`,
		experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get outcomes: %w", err)
	}
	defer rows.Close()

	var events []*OutcomeEvent
	for rows.Next() {
		var e OutcomeEvent
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.ExperimentID, &e.VariantID, &e.Kind, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcomes: %w", err)
	}
	return events, nil
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanExperiment(row rowScanner) (*Experiment, error) {
	var exp Experiment
	var winner sql.NullString
	var winningRate, confidence sql.NullFloat64
	var createdAt int64
	var completedAt sql.NullInt64

	err := row.Scan(&exp.ID, &exp.Name, &exp.Category, &exp.Status, &exp.TotalAssignments,
		&winner, &winningRate, &confidence, &createdAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan experiment: %w", err)
	}

	if winner.Valid {
		exp.Winner = winner.String
	}
	if winningRate.Valid {
		exp.WinningRate = winningRate.Float64
	}
	if confidence.Valid {
		exp.Confidence = confidence.Float64
	}
	exp.CreatedAt = time.Unix(createdAt, 0)
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		exp.CompletedAt = &t
	}
	return &exp, nil
}

func (s *SQLiteStore) loadVariants(ctx context.Context, exp *Experiment) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, content, traffic_pct, assignments, responses, interviews, offers
		 FROM variants WHERE experiment_id = ? ORDER BY ordinal`,
		exp.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.Name, &v.Content, &v.TrafficPct,
			&v.Assignments, &v.Responses, &v.Interviews, &v.Offers); err != nil {
			return fmt.Errorf("failed to scan variant: %w", err)
		}
		exp.Variants = append(exp.Variants, &v)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate variants: %w", err)
	}
	return nil
}

func nullableText(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableReal(f float64) sql.NullFloat64 {
	if f == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
