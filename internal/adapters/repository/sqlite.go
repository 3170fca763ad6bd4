package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/okian/devhistory/internal/domain/record"
	"github.com/okian/devhistory/pkg/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// SQLiteStore persists histories in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// applies migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", ErrInvalidInput)
	}
	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL for concurrent readers, busy_timeout instead of immediate SQLITE_BUSY.
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite has a single writer, and :memory: databases are
	// per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLiteStore{db: db}
	metrics.UpdateStoreRecordsTotal(s.Count(ctx))
	return s, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	for _, f := range files {
		stmt, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("apply migration %s: %w", f, err)
		}
	}
	return nil
}

const upsertSQL = `
INSERT INTO analyses (user_id, id, completed_at, overall_score, source_score_a, source_score_b,
                      status, skill_scores, achievements, handle_a, handle_b, duration_seconds)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, id) DO UPDATE SET
    completed_at = excluded.completed_at,
    overall_score = excluded.overall_score,
    source_score_a = excluded.source_score_a,
    source_score_b = excluded.source_score_b,
    status = excluded.status,
    skill_scores = excluded.skill_scores,
    achievements = excluded.achievements,
    handle_a = excluded.handle_a,
    handle_b = excluded.handle_b,
    duration_seconds = excluded.duration_seconds`

const selectColumns = `id, completed_at, overall_score, source_score_a, source_score_b,
    status, skill_scores, achievements, handle_a, handle_b, duration_seconds`

// Put inserts or replaces a record.
func (s *SQLiteStore) Put(ctx context.Context, userID string, r record.AnalysisRecord) error {
	defer observe("put", time.Now())
	if userID == "" || r.ID == "" {
		return fmt.Errorf("%w: user and record id are required", ErrInvalidInput)
	}

	skills, err := nullJSON(r.SkillScores == nil, r.SkillScores)
	if err != nil {
		return err
	}
	achievements, err := nullJSON(r.Achievements == nil, r.Achievements)
	if err != nil {
		return err
	}
	var handleA, handleB sql.NullString
	if ids, ok := r.Handles(); ok {
		handleA = sql.NullString{String: ids.SourceA, Valid: true}
		handleB = sql.NullString{String: ids.SourceB, Valid: true}
	}
	var duration sql.NullInt64
	if d, ok := r.Duration(); ok {
		duration = sql.NullInt64{Int64: int64(d), Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, upsertSQL,
		userID, r.ID, r.CompletedAt.UnixNano(), r.OverallScore, r.SourceScoreA, r.SourceScoreB,
		string(r.Status), skills, achievements, handleA, handleB, duration,
	); err != nil {
		metrics.RecordErrorByComponent("repository", "sqlite_write")
		return fmt.Errorf("upsert %s/%s: %w", userID, r.ID, err)
	}
	metrics.UpdateStoreRecordsTotal(s.Count(ctx))
	return nil
}

// Get returns one record.
func (s *SQLiteStore) Get(ctx context.Context, userID, recordID string) (record.AnalysisRecord, error) {
	defer observe("get", time.Now())
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM analyses WHERE user_id = ? AND id = ?`, userID, recordID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return record.AnalysisRecord{}, fmt.Errorf("%w: %s/%s", ErrNotFound, userID, recordID)
	}
	if err != nil {
		return record.AnalysisRecord{}, fmt.Errorf("get %s/%s: %w", userID, recordID, err)
	}
	return r, nil
}

// List returns the user's history.
func (s *SQLiteStore) List(ctx context.Context, userID string) ([]record.AnalysisRecord, error) {
	defer observe("list", time.Now())
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM analyses WHERE user_id = ? ORDER BY completed_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	out := []record.AnalysisRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", userID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", userID, err)
	}
	return out, nil
}

// Delete removes one record.
func (s *SQLiteStore) Delete(ctx context.Context, userID, recordID string) error {
	defer observe("delete", time.Now())
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE user_id = ? AND id = ?`, userID, recordID)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", userID, recordID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", userID, recordID, err)
	}
	if n == 0 {
		metrics.RecordErrorByComponent("repository", "not_found")
		return fmt.Errorf("%w: %s/%s", ErrNotFound, userID, recordID)
	}
	metrics.UpdateStoreRecordsTotal(s.Count(ctx))
	return nil
}

// Count returns the number of stored records, or 0 if the query fails.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Users returns every user with records.
func (s *SQLiteStore) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM analyses ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("users: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	metrics.UpdateStoreUsersTotal(len(out))
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (record.AnalysisRecord, error) {
	var (
		r                    record.AnalysisRecord
		completedAt          int64
		status               string
		skills, achievements sql.NullString
		handleA, handleB     sql.NullString
		duration             sql.NullInt64
	)
	if err := sc.Scan(&r.ID, &completedAt, &r.OverallScore, &r.SourceScoreA, &r.SourceScoreB,
		&status, &skills, &achievements, &handleA, &handleB, &duration); err != nil {
		return record.AnalysisRecord{}, err
	}
	r.CompletedAt = time.Unix(0, completedAt).UTC()
	r.Status = record.Status(status)
	if skills.Valid {
		if err := json.Unmarshal([]byte(skills.String), &r.SkillScores); err != nil {
			return record.AnalysisRecord{}, fmt.Errorf("decode skill scores of %s: %w", r.ID, err)
		}
	}
	if achievements.Valid {
		if err := json.Unmarshal([]byte(achievements.String), &r.Achievements); err != nil {
			return record.AnalysisRecord{}, fmt.Errorf("decode achievements of %s: %w", r.ID, err)
		}
	}
	if handleA.Valid || handleB.Valid {
		r.Identities = &record.Identities{SourceA: handleA.String, SourceB: handleB.String}
	}
	if duration.Valid {
		r.DurationSeconds = record.DurationOf(int(duration.Int64))
	}
	return r, nil
}

func nullJSON(isNil bool, v any) (sql.NullString, error) {
	if isNil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode column: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
