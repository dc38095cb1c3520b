package listings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsight/scout-cli/internal/retrieval"
)

func fastRetrieval() *retrieval.Client {
	return retrieval.NewClient(retrieval.Config{
		MaxAttempts:       3,
		PerAttemptTimeout: 2 * time.Second,
		BackoffUnit:       time.Millisecond,
		RatePerSecond:     1000,
		Burst:             1000,
	})
}

func TestSaleComps_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/comps/sale", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "12345", r.URL.Query().Get("zpid"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []any{
				map[string]any{"zpid": "987", "price": 410000},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, WithRetrievalClient(fastRetrieval()))
	out := c.SaleComps(context.Background(), Query{ID: "12345", Limit: 10})

	require.True(t, out.OK)
	require.NotNil(t, out.Data)
	results, ok := (*out.Data)["results"].([]any)
	require.True(t, ok)
	assert.Len(t, results, 1)
}

func TestRentalComps_AddressAndExcludes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/comps/rental", r.URL.Path)
		assert.Equal(t, "12 Oak St, Media, PA", r.URL.Query().Get("address"))
		assert.Equal(t, "a,b", r.URL.Query().Get("exclude_ids"))
		_, _ = w.Write([]byte(`{"comps":[]}`))
	}))
	defer srv.Close()

	c := NewClient("", srv.URL, WithRetrievalClient(fastRetrieval()))
	out := c.RentalComps(context.Background(), Query{
		Address:    "12 Oak St, Media, PA",
		ExcludeIDs: []string{"a", "b"},
	})

	require.True(t, out.OK)
}

func TestSaleComps_TerminalUnauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad-key", srv.URL, WithRetrievalClient(fastRetrieval()))
	out := c.SaleComps(context.Background(), Query{ID: "1"})

	assert.False(t, out.OK)
	assert.Equal(t, http.StatusUnauthorized, out.StatusCode)
	assert.Equal(t, retrieval.KindUnauthorized, out.Kind)
	assert.Equal(t, 1, out.Attempts)
}
