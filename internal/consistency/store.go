// Package consistency persists per-session score history so repeated audits
// of the same recording can be checked for scoring stability.
package consistency

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ischool-ai/session-auditor/internal/score"
)

// Store manages score history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

var migrations = []struct {
	version string
	sql     string
}{
	{
		version: "001_score_history",
		sql: `CREATE TABLE IF NOT EXISTS score_history (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            session_id TEXT NOT NULL,
            run_id TEXT NOT NULL,
            model TEXT NOT NULL,
            final_score REAL NOT NULL,
            seed INTEGER NOT NULL DEFAULT 0,
            temperature REAL NOT NULL DEFAULT 0,
            thinking_level TEXT NOT NULL DEFAULT '',
            recorded_at TEXT NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_score_history_session
            ON score_history (session_id, model);`,
	},
}

// Open initializes or connects to the score history database under stateDir
// and applies migrations.
func Open(stateDir string) (*Store, error) {
	dbPath := filepath.Join(stateDir, "score_history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applyMigrations(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, migration := range migrations {
		var count int
		row := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", migration.version)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, migration.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", migration.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", migration.version); err != nil {
			return fmt.Errorf("record migration %s: %w", migration.version, err)
		}
	}

	return tx.Commit()
}

// Run describes one completed audit to be added to the history. The sampling
// settings are stored alongside the score so drift caused by a config change
// is distinguishable from model instability.
type Run struct {
	SessionID     string
	RunID         string
	Model         string
	FinalScore    float64
	Seed          int
	Temperature   float64
	ThinkingLevel string
}

// Record appends one final score for a session to the history.
func (s *Store) Record(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO score_history (session_id, run_id, model, final_score, seed, temperature, thinking_level, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.SessionID,
		run.RunID,
		run.Model,
		run.FinalScore,
		run.Seed,
		run.Temperature,
		run.ThinkingLevel,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

// History returns all recorded final scores for a session and model, oldest
// first.
func (s *Store) History(ctx context.Context, sessionID, model string) ([]float64, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT final_score FROM score_history
         WHERE session_id = ? AND model = ?
         ORDER BY id ASC`,
		sessionID,
		model,
	)
	if err != nil {
		return nil, fmt.Errorf("query score history: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score history: %w", err)
	}
	return scores, nil
}

// Stats summarizes the recorded score history for one session and model.
type Stats struct {
	Count    int
	Min      float64
	Max      float64
	Median   float64
	Variance float64
	Reliable bool
}

// StatsFor computes history statistics for a session. Reliability means the
// observed spread stays within varianceThreshold points. With fewer than two
// recorded runs the history is trivially reliable.
func (s *Store) StatsFor(ctx context.Context, sessionID, model string, varianceThreshold float64) (Stats, error) {
	scores, err := s.History(ctx, sessionID, model)
	if err != nil {
		return Stats{}, err
	}
	if len(scores) == 0 {
		return Stats{}, nil
	}

	min, max := scores[0], scores[0]
	for _, v := range scores[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	return Stats{
		Count:    len(scores),
		Min:      min,
		Max:      max,
		Median:   score.Median(scores),
		Variance: score.Variance(scores),
		Reliable: len(scores) < 2 || score.Variance(scores) <= varianceThreshold,
	}, nil
}
