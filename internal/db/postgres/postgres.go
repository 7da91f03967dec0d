// Package postgres implements store.Store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/undeadops/snip/internal/store"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS urls (
		id         TEXT PRIMARY KEY,
		full_url   TEXT NOT NULL,
		short      TEXT NOT NULL UNIQUE,
		clicks     BIGINT NOT NULL DEFAULT 0 CHECK (clicks >= 0),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	// btree entries are capped near 2.7kB, so full URLs are indexed by digest
	`DROP INDEX IF EXISTS urls_full_url_idx`,
	`CREATE INDEX IF NOT EXISTS urls_full_url_md5_idx ON urls (md5(full_url))`,
	`CREATE INDEX IF NOT EXISTS urls_created_at_idx ON urls (created_at DESC)`,
}

const columns = "id, full_url, short, clicks, created_at, updated_at"

// Manager owns the connection pool.
type Manager struct {
	pool *pgxpool.Pool
	now  func() time.Time // truncated to microseconds to match timestamptz
}

// NewManager connects to dsn, checks the connection and creates the schema.
func NewManager(ctx context.Context, dsn string) (*Manager, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 60 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Manager{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}, nil
}

func (m *Manager) FindByFull(ctx context.Context, full string) (store.ShortURL, error) {
	row := m.pool.QueryRow(ctx,
		"SELECT "+columns+" FROM urls WHERE md5(full_url) = md5($1) AND full_url = $1 ORDER BY created_at LIMIT 1", full)
	return scanOne(row)
}

func (m *Manager) FindByShort(ctx context.Context, short string) (store.ShortURL, error) {
	row := m.pool.QueryRow(ctx, "SELECT "+columns+" FROM urls WHERE short = $1", short)
	return scanOne(row)
}

func (m *Manager) Create(ctx context.Context, full, short string) (store.ShortURL, error) {
	now := m.now()
	rec := store.ShortURL{
		ID:        uuid.NewString(),
		Full:      full,
		Short:     short,
		Clicks:    0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := m.pool.Exec(ctx,
		"INSERT INTO urls ("+columns+") VALUES ($1, $2, $3, $4, $5, $6)",
		rec.ID, rec.Full, rec.Short, rec.Clicks, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ShortURL{}, store.ErrShortExists
		}
		return store.ShortURL{}, fmt.Errorf("failed to insert url: %w", err)
	}

	return rec, nil
}

func (m *Manager) IncrementClicks(ctx context.Context, short string) (store.ShortURL, error) {
	row := m.pool.QueryRow(ctx,
		"UPDATE urls SET clicks = clicks + 1, updated_at = $2 WHERE short = $1 RETURNING "+columns,
		short, m.now())
	return scanOne(row)
}

func (m *Manager) DeleteByShort(ctx context.Context, short string) (bool, error) {
	tag, err := m.pool.Exec(ctx, "DELETE FROM urls WHERE short = $1", short)
	if err != nil {
		return false, fmt.Errorf("failed to delete url: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (m *Manager) ListRecent(ctx context.Context, limit, skip int) ([]store.ShortURL, error) {
	if limit <= 0 {
		return []store.ShortURL{}, nil
	}
	if skip < 0 {
		skip = 0
	}

	rows, err := m.pool.Query(ctx,
		"SELECT "+columns+" FROM urls ORDER BY created_at DESC, id LIMIT $1 OFFSET $2", limit, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	defer rows.Close()

	records := make([]store.ShortURL, 0, limit)
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}

	return records, nil
}

func (m *Manager) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := m.pool.QueryRow(ctx, "SELECT COUNT(*) FROM urls").Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count urls: %w", err)
	}
	return total, nil
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}

// Close closes the pool.
func (m *Manager) Close() error {
	m.pool.Close()
	return nil
}

func scanOne(row pgx.Row) (store.ShortURL, error) {
	rec, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ShortURL{}, store.ErrNotFound
	}
	return rec, err
}

func scan(row pgx.Row) (store.ShortURL, error) {
	var rec store.ShortURL
	err := row.Scan(&rec.ID, &rec.Full, &rec.Short, &rec.Clicks, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ShortURL{}, err
		}
		return store.ShortURL{}, fmt.Errorf("failed to scan url: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}
