package hubsync

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

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		AccessToken: "test-token",
		BaseURL:     srv.URL,
	})
	require.NoError(t, err)
	client.retryBase = time.Millisecond // keep retry tests fast
	return client
}

func TestNewClient_RequiresAccessToken(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrMissingAccessToken)
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := client.Request(context.Background(), "GET", "crm/v3/objects/deals", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestClient_RetryBound(t *testing.T) {
	var attempts atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, `{"message":"unavailable"}`, http.StatusServiceUnavailable)
	}))

	_, err := client.Request(context.Background(), "GET", "crm/v3/objects/deals", nil, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.True(t, apiErr.Retryable())

	// 1 initial attempt + 3 retries, never more, never fewer.
	assert.EqualValues(t, 4, attempts.Load())
}

func TestClient_RetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	body, err := client.Request(context.Background(), "GET", "crm/v3/objects/deals", nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.EqualValues(t, 3, attempts.Load())
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, `{"message":"deal not found","category":"OBJECT_NOT_FOUND"}`, http.StatusNotFound)
	}))

	_, err := client.Request(context.Background(), "GET", "crm/v3/objects/deals/42", nil, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "deal not found", apiErr.Message)
	assert.Equal(t, "OBJECT_NOT_FOUND", apiErr.Details["category"])
	assert.False(t, apiErr.Retryable())
	assert.EqualValues(t, 1, attempts.Load())
}

func TestClient_PostNotRetried(t *testing.T) {
	var attempts atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.Request(context.Background(), "POST", "crm/v3/objects/deals",
		map[string]any{"properties": map[string]string{}}, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	// A create that may have partially succeeded must not be blindly
	// retried; the caller decides.
	assert.EqualValues(t, 1, attempts.Load())
}

func TestClient_NoContentIsSuccess(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	body, err := client.Request(context.Background(), "DELETE", "crm/v3/objects/deals/42", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestClient_NetworkFailureIsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client, err := NewClient(Config{AccessToken: "test-token", BaseURL: srv.URL})
	require.NoError(t, err)
	srv.Close() // all subsequent dials fail

	_, err = client.Request(context.Background(), "GET", "crm/v3/objects/deals", nil, nil)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	var apiErr *APIError
	assert.NotErrorAs(t, err, &apiErr, "network failure must not look like a server rejection")
}

func TestClient_RequestPassesRateLimiter(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	client.limiter = NewRateLimiter(2, 100*time.Millisecond)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := client.Request(ctx, "GET", "crm/v3/objects/deals", nil, nil)
		require.NoError(t, err)
	}

	// The third request must wait for the window to slide.
	start := time.Now()
	_, err := client.Request(ctx, "GET", "crm/v3/objects/deals", nil, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestClient_QueryParameters(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{}`))
	}))

	query := url.Values{"limit": {"100"}}
	_, err := client.Request(context.Background(), "GET", "crm/v3/objects/deals", nil, query)
	require.NoError(t, err)
	assert.Equal(t, "limit=100", gotQuery)
}
