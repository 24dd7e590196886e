package stars

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/dabendan2/file-explorer/internal/metrics"
)

const schema = `CREATE TABLE IF NOT EXISTS starred_paths (
	path       TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore keeps stars in a PostgreSQL table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects and ensures the table exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create starred_paths: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// List returns every starred path.
func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_stars", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx, `SELECT path FROM starred_paths ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list stars: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan star: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Set stars or unstars p.
func (s *PostgresStore) Set(ctx context.Context, p string, starred bool) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("set_star", time.Since(start)) }()

	p = Normalize(p)
	if p == "" {
		return fmt.Errorf("cannot star the root")
	}

	var err error
	if starred {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO starred_paths (path) VALUES ($1) ON CONFLICT (path) DO NOTHING`, p)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM starred_paths WHERE path = $1`, p)
	}
	if err != nil {
		return fmt.Errorf("set star: %w", err)
	}
	return nil
}

// RemoveTree unstars p and its descendants.
func (s *PostgresStore) RemoveTree(ctx context.Context, p string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("remove_star_tree", time.Since(start)) }()

	p = Normalize(p)
	var err error
	if p == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM starred_paths`)
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM starred_paths WHERE path = $1 OR path LIKE $2`,
			p, likePrefix(p))
	}
	if err != nil {
		return fmt.Errorf("remove star tree: %w", err)
	}
	return nil
}

// MoveTree re-keys p and its descendants under newPath. Rows that would
// collide with an existing star are dropped.
func (s *PostgresStore) MoveTree(ctx context.Context, oldPath, newPath string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("move_star_tree", time.Since(start)) }()

	oldPath, newPath = Normalize(oldPath), Normalize(newPath)
	if oldPath == "" || newPath == "" || oldPath == newPath {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("move star tree: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO starred_paths (path, created_at)
		 SELECT $2 || substr(path, length($1) + 1), created_at
		 FROM starred_paths
		 WHERE path = $1 OR path LIKE $3
		 ON CONFLICT (path) DO NOTHING`,
		oldPath, newPath, likePrefix(oldPath))
	if err != nil {
		return fmt.Errorf("move star tree: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM starred_paths WHERE path = $1 OR path LIKE $2`,
		oldPath, likePrefix(oldPath))
	if err != nil {
		return fmt.Errorf("move star tree: %w", err)
	}
	return tx.Commit()
}

// likePrefix matches descendants of p, escaping LIKE wildcards.
func likePrefix(p string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(p) + "/%"
}
