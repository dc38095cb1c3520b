// Package store persists scan history and caches upstream comparable
// responses. Two drivers exist: SQLite for local use and Postgres for
// shared deployments.
package store

import (
	"context"
	"time"

	"github.com/propsight/scout-cli/internal/model"
)

// ScanFilter specifies criteria for listing scan history.
type ScanFilter struct {
	Status model.ScanStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store defines the persistence interface.
type Store interface {
	// Scan history
	SaveScan(ctx context.Context, scan model.ScanRecord) (*model.ScanRecord, error)
	ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRecord, error)

	// Comparable cache
	GetCachedComps(ctx context.Context, key string) ([]model.ComparableRecord, error)
	SetCachedComps(ctx context.Context, key string, records []model.ComparableRecord, ttl time.Duration) error
	DeleteExpiredComps(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
