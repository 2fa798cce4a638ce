package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"RSSDigest/internal/domain"
	"RSSDigest/internal/ports"
)

const checkpointsTable = "checkpoints"

const createCheckpointsTable = `CREATE TABLE IF NOT EXISTS checkpoints (
	name       TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLStore keeps checkpoints as rows of a single table in SQLite or Postgres.
type SQLStore struct {
	db      *sql.DB
	prefix  string
	builder sq.StatementBuilderType
}

var _ ports.CheckpointStore = (*SQLStore)(nil)

// OpenSQLStore opens the database for backend "sqlite" or "postgres" and
// ensures the checkpoints table exists.
func OpenSQLStore(ctx context.Context, backend, dsn, prefix string) (*SQLStore, error) {
	var (
		driver      string
		placeholder sq.PlaceholderFormat
	)
	switch backend {
	case "sqlite":
		driver, placeholder = "sqlite", sq.Question
	case "postgres":
		driver, placeholder = "postgres", sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported sql backend %q", backend)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", backend, err)
	}
	if backend == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, createCheckpointsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}

	return &SQLStore{
		db:      db,
		prefix:  prefix,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Exists reports whether a row is stored for the checkpoint.
func (s *SQLStore) Exists(ctx context.Context, name ports.Checkpoint) (bool, error) {
	query, args, err := s.builder.Select("COUNT(*)").
		From(checkpointsTable).
		Where(sq.Eq{"name": Key(s.prefix, name)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("query %s: %w", name, err)
	}
	return count > 0, nil
}

// Load returns ok=false when no row exists.
func (s *SQLStore) Load(ctx context.Context, name ports.Checkpoint) ([]domain.Item, bool, error) {
	key := Key(s.prefix, name)
	query, args, err := s.builder.Select("payload").
		From(checkpointsTable).
		Where(sq.Eq{"name": key}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build load query: %w", err)
	}

	var payload string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", name, err)
	}

	items, err := decodeItems(key, []byte(payload))
	if err != nil {
		return nil, false, err
	}
	return items, true, nil
}

// Save upserts the whole snapshot in one statement.
func (s *SQLStore) Save(ctx context.Context, name ports.Checkpoint, items []domain.Item) error {
	data, err := encodeItems(items)
	if err != nil {
		return err
	}

	query, args, err := s.builder.Insert(checkpointsTable).
		Columns("name", "payload", "updated_at").
		Values(Key(s.prefix, name), string(data), time.Now().UTC()).
		Suffix("ON CONFLICT (name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build save query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", name, err)
	}
	return nil
}

// Delete removes the row; a missing row is not an error.
func (s *SQLStore) Delete(ctx context.Context, name ports.Checkpoint) error {
	query, args, err := s.builder.Delete(checkpointsTable).
		Where(sq.Eq{"name": Key(s.prefix, name)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Rename replaces to with from inside one transaction.
func (s *SQLStore) Rename(ctx context.Context, from, to ports.Checkpoint) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rename: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	delQuery, delArgs, err := s.builder.Delete(checkpointsTable).
		Where(sq.Eq{"name": Key(s.prefix, to)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build rename delete: %w", err)
	}

	updQuery, updArgs, err := s.builder.Update(checkpointsTable).
		Set("name", Key(s.prefix, to)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"name": Key(s.prefix, from)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build rename update: %w", err)
	}

	// Make sure the source exists before dropping the target.
	exists, err := s.existsTx(ctx, tx, from)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("rename %s: %w", from, ErrNotFound)
	}

	if _, err = tx.ExecContext(ctx, delQuery, delArgs...); err != nil {
		return fmt.Errorf("drop %s: %w", to, err)
	}
	if _, err = tx.ExecContext(ctx, updQuery, updArgs...); err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit rename: %w", err)
	}
	return nil
}

func (s *SQLStore) existsTx(ctx context.Context, tx *sql.Tx, name ports.Checkpoint) (bool, error) {
	query, args, err := s.builder.Select("COUNT(*)").
		From(checkpointsTable).
		Where(sq.Eq{"name": Key(s.prefix, name)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}
	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("query %s: %w", name, err)
	}
	return count > 0, nil
}
