package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/pkg/platform/middleware/metadata"
)

func TestInMemoryStore(t *testing.T) {
	now := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	store := NewInMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := range 3 {
		res, err := store.AllowN(ctx, "k", 1, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := store.AllowN(ctx, "k", 1, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 60, res.RetryAfter)

	res, err = store.AllowN(ctx, "other", 1, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "keys have separate windows")

	now = now.Add(time.Minute + time.Second)
	res, err = store.AllowN(ctx, "k", 1, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "window slides")
}

type failingStore struct{}

func (failingStore) AllowN(context.Context, string, int, int, time.Duration) (*Result, error) {
	return nil, errors.New("redis down")
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	class := Class{Name: "start", Limit: 2, Window: time.Minute}

	t.Run("rejects over the limit", func(t *testing.T) {
		h := metadata.RequestMetadata(New(NewInMemoryStore(), nil).Limit(class)(ok))
		codes := make([]int, 0, 3)
		var last *httptest.ResponseRecorder
		for range 3 {
			last = httptest.NewRecorder()
			h.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
			codes = append(codes, last.Code)
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
		assert.Equal(t, "2", last.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, last.Header().Get("Retry-After"))
		assert.Contains(t, last.Body.String(), "rate_limit_exceeded")
	})

	t.Run("store failure lets requests through", func(t *testing.T) {
		h := New(failingStore{}, nil).Limit(class)(ok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		h := New(failingStore{}, nil, WithDisabled(true)).Limit(Class{Name: "x", Limit: 0})(ok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
