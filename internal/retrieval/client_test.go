package retrieval

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Value string `json:"value"`
}

func fastConfig() Config {
	return Config{
		MaxAttempts:       3,
		PerAttemptTimeout: 2 * time.Second,
		BackoffUnit:       time.Millisecond,
		RatePerSecond:     1000,
		Burst:             1000,
	}
}

func TestGetJSON_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bar", r.URL.Query().Get("foo"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(fastConfig())
	out := GetJSON[payload](context.Background(), c, srv.URL, url.Values{"foo": {"bar"}}, nil)

	require.True(t, out.OK)
	require.NotNil(t, out.Data)
	assert.Equal(t, "ok", out.Data.Value)
	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.Equal(t, KindNone, out.Kind)
	assert.Equal(t, 1, out.Attempts)
	assert.Greater(t, out.Duration, time.Duration(0))
}

func TestGetJSON_503ExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(fastConfig())
	out := GetJSON[payload](context.Background(), c, srv.URL, nil, nil)

	assert.False(t, out.OK)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, http.StatusServiceUnavailable, out.StatusCode)
	assert.Equal(t, KindServerError, out.Kind)
	assert.Error(t, out.Err)
}

func TestGetJSON_404Terminal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(fastConfig())
	out := GetJSON[payload](context.Background(), c, srv.URL, nil, nil)

	assert.False(t, out.OK)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, KindNotFound, out.Kind)
}

func TestGetJSON_429Terminal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(fastConfig())
	out := GetJSON[payload](context.Background(), c, srv.URL, nil, nil)

	assert.False(t, out.OK)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, KindRateLimited, out.Kind)
}

func TestGetJSON_RecoversAfterTransientFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"value":"recovered"}`))
	}))
	defer srv.Close()

	c := NewClient(fastConfig())
	out := GetJSON[payload](context.Background(), c, srv.URL, nil, nil)

	require.True(t, out.OK)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, "recovered", out.Data.Value)
}

func TestGetJSON_Cancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	c := NewClient(fastConfig())
	out := GetJSON[payload](ctx, c, srv.URL, nil, nil)

	assert.False(t, out.OK)
	assert.Equal(t, KindCancelled, out.Kind)
	assert.Equal(t, 1, out.Attempts, "cancellation must not consume retries")
}

func TestGetJSON_PerAttemptTimeoutRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.MaxAttempts = 2
	cfg.PerAttemptTimeout = 30 * time.Millisecond

	c := NewClient(cfg)
	out := GetJSON[payload](context.Background(), c, srv.URL, nil, nil)

	assert.False(t, out.OK)
	assert.Equal(t, KindTimeout, out.Kind)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSON_MalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"value":`))
	}))
	defer srv.Close()

	c := NewClient(fastConfig())
	out := GetJSON[payload](context.Background(), c, srv.URL, nil, nil)

	assert.False(t, out.OK)
	assert.Error(t, out.Err)
	assert.Equal(t, KindBadPayload, out.Kind, "a 200 with garbage is not a status failure")
	assert.Equal(t, 200, out.StatusCode)
	assert.Equal(t, 1, out.Attempts, "same bytes would come back, no retry")
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindUnauthorized, Classify(401))
	assert.Equal(t, KindNotFound, Classify(404))
	assert.Equal(t, KindRateLimited, Classify(429))
	assert.Equal(t, KindServerError, Classify(502))
	assert.Equal(t, KindServerError, Classify(503))
	assert.Equal(t, KindServerError, Classify(504))
	assert.Equal(t, KindBadStatus, Classify(400))
	assert.Equal(t, KindBadStatus, Classify(500))
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRetryable(KindServerError))
	assert.True(t, IsRetryable(KindTimeout))
	assert.True(t, IsRetryable(KindNetwork))
	assert.False(t, IsRetryable(KindNotFound))
	assert.False(t, IsRetryable(KindUnauthorized))
	assert.False(t, IsRetryable(KindRateLimited))
	assert.False(t, IsRetryable(KindCancelled))
	assert.False(t, IsRetryable(KindBadStatus))
	assert.False(t, IsRetryable(KindBadPayload))
}
