package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsight/scout-cli/internal/geomath"
	"github.com/propsight/scout-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "scout.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func TestSQLite_SaveAndListScans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	heading := 90.0
	saved, err := s.SaveScan(ctx, model.ScanRecord{
		Origin:    geomath.Point{Lat: 40.0, Lng: -75.0},
		Heading:   &heading,
		DistanceM: 50,
		Status:    model.ScanStatusResolved,
		Resolved: &model.ResolvedProperty{
			Street:     "12 Oak St",
			City:       "Media",
			State:      "PA",
			ZipCode:    "19063",
			Point:      geomath.Point{Lat: 40.0004, Lng: -75.0},
			Confidence: 95,
			Source:     "parcel",
		},
		DurationMs: 120,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	scans, err := s.ListScans(ctx, ScanFilter{})
	require.NoError(t, err)
	require.Len(t, scans, 1)

	got := scans[0]
	assert.Equal(t, saved.ID, got.ID)
	assert.InDelta(t, 40.0, got.Origin.Lat, 1e-9)
	require.NotNil(t, got.Heading)
	assert.InDelta(t, 90.0, *got.Heading, 1e-9)
	assert.Equal(t, model.ScanStatusResolved, got.Status)
	require.NotNil(t, got.Resolved)
	assert.Equal(t, "12 Oak St", got.Resolved.Street)
	assert.Equal(t, 95, got.Resolved.Confidence)
	assert.Equal(t, int64(120), got.DurationMs)
}

func TestSQLite_ListScansStatusFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveScan(ctx, model.ScanRecord{
		Origin: geomath.Point{Lat: 40, Lng: -75}, DistanceM: 50,
		Status: model.ScanStatusResolved,
	})
	require.NoError(t, err)
	_, err = s.SaveScan(ctx, model.ScanRecord{
		Origin: geomath.Point{Lat: 41, Lng: -76}, DistanceM: 30,
		Status: model.ScanStatusNoMatch, Error: "no property matched in scan cone",
	})
	require.NoError(t, err)

	noMatch, err := s.ListScans(ctx, ScanFilter{Status: model.ScanStatusNoMatch})
	require.NoError(t, err)
	require.Len(t, noMatch, 1)
	assert.Equal(t, model.ScanStatusNoMatch, noMatch[0].Status)
	assert.Equal(t, "no property matched in scan cone", noMatch[0].Error)

	all, err := s.ListScans(ctx, ScanFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_ListScansLimitOffset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.SaveScan(ctx, model.ScanRecord{
			Origin:    geomath.Point{Lat: 40, Lng: -75},
			DistanceM: float64(10 * (i + 1)),
			Status:    model.ScanStatusResolved,
			CreatedAt: time.Date(2026, 8, 1, 0, i, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	page, err := s.ListScans(ctx, ScanFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Newest first, so offset 1 skips the most recent insert.
	assert.InDelta(t, 40.0, page[0].DistanceM, 1e-9)
	assert.InDelta(t, 30.0, page[1].DistanceM, 1e-9)
}

func TestSQLite_CompsCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []model.ComparableRecord{
		{ID: "sale-1", Kind: model.CompsKindSale, Address: "10 Elm St", Price: 450000, Sqft: 1500, Beds: 3, Baths: 2, SimilarityScore: 92},
		{ID: "sale-2", Kind: model.CompsKindSale, Address: "22 Elm St", Price: 420000, Sqft: 1400, Beds: 3, Baths: 1.5, SimilarityScore: 85},
	}
	require.NoError(t, s.SetCachedComps(ctx, "sale|zpid-1|20|0", records, time.Hour))

	got, err := s.GetCachedComps(ctx, "sale|zpid-1|20|0")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sale-1", got[0].ID)
	assert.Equal(t, 92, got[0].SimilarityScore)

	miss, err := s.GetCachedComps(ctx, "rental|zpid-1|20|0")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestSQLite_CompsCacheOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetCachedComps(ctx, "k", []model.ComparableRecord{{ID: "a"}}, time.Hour))
	require.NoError(t, s.SetCachedComps(ctx, "k", []model.ComparableRecord{{ID: "b"}}, time.Hour))

	got, err := s.GetCachedComps(ctx, "k")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestSQLite_CompsCacheExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetCachedComps(ctx, "stale", []model.ComparableRecord{{ID: "a"}}, -time.Minute))
	require.NoError(t, s.SetCachedComps(ctx, "fresh", []model.ComparableRecord{{ID: "b"}}, time.Hour))

	got, err := s.GetCachedComps(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entries read as misses")

	n, err := s.DeleteExpiredComps(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fresh, err := s.GetCachedComps(ctx, "fresh")
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
}
