package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"MemeCurator/internal/domain"
	"MemeCurator/internal/ports"
)

const insertChunk = 200

var schema = []string{
	`CREATE TABLE IF NOT EXISTS posted_ids (
		external_id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS disliked_topics (
		position INTEGER PRIMARY KEY,
		topic TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS curator_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_run_date TEXT
	)`,
}

// SQLHistoryStore persists history rows in a SQL database.
type SQLHistoryStore struct {
	db *sql.DB
}

var _ ports.HistoryStore = (*SQLHistoryStore)(nil)

// OpenSQLite opens (or creates) a sqlite database at path and prepares the
// schema. A file that is not a valid database is moved aside to path.corrupt
// and replaced by a fresh one.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLHistoryStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	store, err := openAndMigrate(ctx, path)
	if err == nil || !isCorrupt(err) {
		return store, err
	}

	quarantine := path + corruptSuffix
	if rerr := os.Rename(path, quarantine); rerr != nil {
		return nil, fmt.Errorf("history database corrupt (%v) and could not be moved aside: %w", err, rerr)
	}
	logger.Warn("history database corrupt, moved aside and starting empty", "path", path, "moved_to", quarantine, "error", err)
	return openAndMigrate(ctx, path)
}

func openAndMigrate(ctx context.Context, path string) (*SQLHistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := NewSQLHistoryStore(db)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// isCorrupt reports whether sqlite rejected the file itself.
func isCorrupt(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
		return true
	}
	return false
}

// NewSQLHistoryStore wires a sql.DB implementation.
func NewSQLHistoryStore(db *sql.DB) *SQLHistoryStore {
	return &SQLHistoryStore{db: db}
}

// Migrate creates missing tables.
func (s *SQLHistoryStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLHistoryStore) Close() error {
	return s.db.Close()
}

// Load reads the whole history record.
func (s *SQLHistoryStore) Load(ctx context.Context) (domain.History, error) {
	history := domain.EmptyHistory()

	ids, err := s.queryStrings(ctx, sq.Select("external_id").From("posted_ids").OrderBy("seq"))
	if err != nil {
		return domain.History{}, fmt.Errorf("load posted ids: %w", err)
	}
	history.PostedIDs = append(history.PostedIDs, ids...)

	topics, err := s.queryStrings(ctx, sq.Select("topic").From("disliked_topics").OrderBy("position"))
	if err != nil {
		return domain.History{}, fmt.Errorf("load disliked topics: %w", err)
	}
	history.DislikedTopics = append(history.DislikedTopics, topics...)

	query, args, err := sq.Select("last_run_date").From("curator_state").Where(sq.Eq{"id": 1}).ToSql()
	if err != nil {
		return domain.History{}, fmt.Errorf("build state query: %w", err)
	}
	var lastRun sql.NullString
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&lastRun)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return domain.History{}, fmt.Errorf("load state: %w", err)
	case lastRun.Valid:
		if ts, perr := time.Parse(time.RFC3339Nano, lastRun.String); perr == nil {
			history.LastRunDate = &ts
		}
	}

	return history, nil
}

// Save writes the record in one transaction. Posted ids are only ever inserted.
func (s *SQLHistoryStore) Save(ctx context.Context, history domain.History) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for start := 0; start < len(history.PostedIDs); start += insertChunk {
		end := min(start+insertChunk, len(history.PostedIDs))
		insert := sq.Insert("posted_ids").Options("OR IGNORE").Columns("external_id", "seq")
		for i := start; i < end; i++ {
			insert = insert.Values(history.PostedIDs[i], i)
		}
		if err = execBuilder(ctx, tx, insert); err != nil {
			return fmt.Errorf("insert posted ids: %w", err)
		}
	}

	if err = execBuilder(ctx, tx, sq.Delete("disliked_topics")); err != nil {
		return fmt.Errorf("clear disliked topics: %w", err)
	}
	if len(history.DislikedTopics) > 0 {
		insert := sq.Insert("disliked_topics").Columns("position", "topic")
		for i, topic := range history.DislikedTopics {
			insert = insert.Values(i, topic)
		}
		if err = execBuilder(ctx, tx, insert); err != nil {
			return fmt.Errorf("insert disliked topics: %w", err)
		}
	}

	var lastRun any
	if history.LastRunDate != nil {
		lastRun = history.LastRunDate.UTC().Format(time.RFC3339Nano)
	}
	upsert := sq.Insert("curator_state").
		Columns("id", "last_run_date").
		Values(1, lastRun).
		Suffix("ON CONFLICT(id) DO UPDATE SET last_run_date = excluded.last_run_date")
	if err = execBuilder(ctx, tx, upsert); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLHistoryStore) queryStrings(ctx context.Context, builder sq.SelectBuilder) ([]string, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	var result []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan: %w", err)
		}
		result = append(result, value)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

func execBuilder(ctx context.Context, tx *sql.Tx, builder sq.Sqlizer) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build statement: %w", err)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}
