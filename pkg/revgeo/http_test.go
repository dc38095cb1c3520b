package revgeo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsight/scout-cli/internal/geomath"
	"github.com/propsight/scout-cli/internal/retrieval"
)

func fastRetrieval() *retrieval.Client {
	return retrieval.NewClient(retrieval.Config{
		MaxAttempts:       2,
		PerAttemptTimeout: 2 * time.Second,
		BackoffUnit:       time.Millisecond,
		RatePerSecond:     1000,
		Burst:             1000,
	})
}

func TestHTTPProvider_Match(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "40.1", r.URL.Query().Get("lat"))
		assert.Equal(t, "-75.2", r.URL.Query().Get("lng"))
		_ = json.NewEncoder(w).Encode(reverseResponse{
			Matched: true,
			Street:  "12 Oak St",
			City:    "Media",
			State:   "PA",
			ZipCode: "19063",
			Lat:     40.1001,
			Lng:     -75.2001,
		})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, fastRetrieval())
	require.True(t, p.Available())

	got, err := p.Lookup(context.Background(), geomath.Point{Lat: 40.1, Lng: -75.2})
	require.NoError(t, err)
	assert.Equal(t, "12 Oak St", got.Street)
	assert.Equal(t, "Media", got.City)
	assert.InDelta(t, 40.1001, got.Point.Lat, 1e-9)
}

func TestHTTPProvider_NoMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(reverseResponse{Matched: false})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, fastRetrieval())
	_, err := p.Lookup(context.Background(), geomath.Point{})
	assert.True(t, eris.Is(err, ErrNoMatch))
}

func TestHTTPProvider_404IsNoMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, fastRetrieval())
	_, err := p.Lookup(context.Background(), geomath.Point{})
	assert.True(t, eris.Is(err, ErrNoMatch))
}

func TestHTTPProvider_FallsBackToProbePoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(reverseResponse{Matched: true, Street: "5 Elm St"})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, fastRetrieval())
	got, err := p.Lookup(context.Background(), geomath.Point{Lat: 40.5, Lng: -75.5})
	require.NoError(t, err)
	assert.Equal(t, geomath.Point{Lat: 40.5, Lng: -75.5}, got.Point)
}

func TestHTTPProvider_Unavailable(t *testing.T) {
	t.Parallel()

	p := NewHTTPProvider("", nil)
	assert.False(t, p.Available())
}
