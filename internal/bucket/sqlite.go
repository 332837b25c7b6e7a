package bucket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS objects (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	etag       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLite keeps objects in one table of a local database. Conditional puts
// are single statements guarded on the etag column, so they are atomic
// across every process sharing the file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create objects table: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Name implements Bucket.
func (s *SQLite) Name() string {
	return "sqlite"
}

// Conditional implements Bucket.
func (s *SQLite) Conditional() bool {
	return true
}

// Get implements Bucket.
func (s *SQLite) Get(ctx context.Context, key string) (*Object, error) {
	var obj Object
	err := s.db.QueryRowContext(ctx,
		`SELECT data, etag FROM objects WHERE key = ?`, key,
	).Scan(&obj.Data, &obj.ETag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return &obj, nil
}

// Put implements Bucket.
func (s *SQLite) Put(ctx context.Context, key string, data []byte, cond Condition) (string, error) {
	tag := ContentTag(data)
	updated := s.now().UTC().UnixMilli()

	var (
		res sql.Result
		err error
	)
	switch {
	case cond.IfMatch != "":
		res, err = s.db.ExecContext(ctx,
			`UPDATE objects SET data = ?, etag = ?, updated_at = ? WHERE key = ? AND etag = ?`,
			data, tag, updated, key, cond.IfMatch)
	case cond.IfNoneMatch:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO objects (key, data, etag, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(key) DO NOTHING`,
			key, data, tag, updated)
	default:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO objects (key, data, etag, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET data = excluded.data, etag = excluded.etag, updated_at = excluded.updated_at`,
			key, data, tag, updated)
	}
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	if !cond.IsZero() {
		n, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("put %s: %w", key, err)
		}
		if n == 0 {
			return "", ErrPrecondition
		}
	}
	return tag, nil
}

// Exists implements Bucket.
func (s *SQLite) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return true, nil
}
