package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/propsight/scout-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scans (
	id          TEXT PRIMARY KEY,
	origin_lat  REAL NOT NULL,
	origin_lng  REAL NOT NULL,
	heading     REAL,
	distance_m  REAL NOT NULL,
	status      TEXT NOT NULL,
	resolved    TEXT,
	error       TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS comps_cache (
	cache_key  TEXT PRIMARY KEY,
	records    TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);
CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at);
CREATE INDEX IF NOT EXISTS idx_comps_cache_expires_at ON comps_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveScan(ctx context.Context, scan model.ScanRecord) (*model.ScanRecord, error) {
	if scan.ID == "" {
		scan.ID = uuid.New().String()
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}

	var resolvedJSON sql.NullString
	if scan.Resolved != nil {
		b, err := json.Marshal(scan.Resolved)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal resolved property")
		}
		resolvedJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, origin_lat, origin_lng, heading, distance_m, status, resolved, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scan.ID, scan.Origin.Lat, scan.Origin.Lng, scan.Heading, scan.DistanceM,
		string(scan.Status), resolvedJSON, scan.Error, scan.DurationMs, scan.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert scan")
	}
	return &scan, nil
}

func (s *SQLiteStore) ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRecord, error) {
	query := `SELECT id, origin_lat, origin_lng, heading, distance_m, status, resolved, error, duration_ms, created_at FROM scans`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scans")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ScanRecord
	for rows.Next() {
		var rec model.ScanRecord
		var heading sql.NullFloat64
		var resolved, errMsg sql.NullString
		var status string
		if err := rows.Scan(
			&rec.ID, &rec.Origin.Lat, &rec.Origin.Lng, &heading, &rec.DistanceM,
			&status, &resolved, &errMsg, &rec.DurationMs, &rec.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		rec.Status = model.ScanStatus(status)
		if heading.Valid {
			h := heading.Float64
			rec.Heading = &h
		}
		if resolved.Valid {
			var rp model.ResolvedProperty
			if err := json.Unmarshal([]byte(resolved.String), &rp); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal resolved property")
			}
			rec.Resolved = &rp
		}
		if errMsg.Valid {
			rec.Error = errMsg.String
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate scans")
	}
	return out, nil
}

func (s *SQLiteStore) GetCachedComps(ctx context.Context, key string) ([]model.ComparableRecord, error) {
	var recordsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT records FROM comps_cache WHERE cache_key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&recordsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached comps")
	}

	var records []model.ComparableRecord
	if err := json.Unmarshal([]byte(recordsJSON), &records); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached comps")
	}
	return records, nil
}

func (s *SQLiteStore) SetCachedComps(ctx context.Context, key string, records []model.ComparableRecord, ttl time.Duration) error {
	b, err := json.Marshal(records)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal comps")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comps_cache (cache_key, records, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET records = excluded.records, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, string(b), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached comps")
}

func (s *SQLiteStore) DeleteExpiredComps(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM comps_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired comps")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}
