package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/propsight/scout-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock implements
// the same surface, which keeps the Postgres driver unit-testable.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS scans (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	origin_lat  DOUBLE PRECISION NOT NULL,
	origin_lng  DOUBLE PRECISION NOT NULL,
	heading     DOUBLE PRECISION,
	distance_m  DOUBLE PRECISION NOT NULL,
	status      TEXT NOT NULL,
	resolved    JSONB,
	error       TEXT,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS comps_cache (
	cache_key  TEXT PRIMARY KEY,
	records    JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);
CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at);
CREATE INDEX IF NOT EXISTS idx_comps_cache_expires_at ON comps_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveScan(ctx context.Context, scan model.ScanRecord) (*model.ScanRecord, error) {
	if scan.ID == "" {
		scan.ID = uuid.New().String()
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}

	var resolvedJSON []byte
	if scan.Resolved != nil {
		b, err := json.Marshal(scan.Resolved)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal resolved property")
		}
		resolvedJSON = b
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO scans (id, origin_lat, origin_lng, heading, distance_m, status, resolved, error, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		scan.ID, scan.Origin.Lat, scan.Origin.Lng, scan.Heading, scan.DistanceM,
		string(scan.Status), resolvedJSON, scan.Error, scan.DurationMs, scan.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert scan")
	}
	return &scan, nil
}

func (s *PostgresStore) ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRecord, error) {
	query := `SELECT id, origin_lat, origin_lng, heading, distance_m, status, resolved, error, duration_ms, created_at FROM scans WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scans")
	}
	defer rows.Close()

	var out []model.ScanRecord
	for rows.Next() {
		var rec model.ScanRecord
		var heading *float64
		var resolvedJSON []byte
		var errMsg *string
		var status string

		if err := rows.Scan(
			&rec.ID, &rec.Origin.Lat, &rec.Origin.Lng, &heading, &rec.DistanceM,
			&status, &resolvedJSON, &errMsg, &rec.DurationMs, &rec.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		rec.Status = model.ScanStatus(status)
		rec.Heading = heading
		if len(resolvedJSON) > 0 {
			rec.Resolved = &model.ResolvedProperty{}
			if err := json.Unmarshal(resolvedJSON, rec.Resolved); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal resolved property")
			}
		}
		if errMsg != nil {
			rec.Error = *errMsg
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list scans iterate")
}

func (s *PostgresStore) GetCachedComps(ctx context.Context, key string) ([]model.ComparableRecord, error) {
	var recordsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT records FROM comps_cache WHERE cache_key = $1 AND expires_at > now()`,
		key,
	).Scan(&recordsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached comps")
	}

	var records []model.ComparableRecord
	if err := json.Unmarshal(recordsJSON, &records); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached comps")
	}
	return records, nil
}

func (s *PostgresStore) SetCachedComps(ctx context.Context, key string, records []model.ComparableRecord, ttl time.Duration) error {
	b, err := json.Marshal(records)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal comps")
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO comps_cache (cache_key, records, cached_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cache_key) DO UPDATE SET records = $2, cached_at = $3, expires_at = $4`,
		key, b, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached comps")
}

func (s *PostgresStore) DeleteExpiredComps(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM comps_cache WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired comps")
	}
	return int(tag.RowsAffected()), nil
}
