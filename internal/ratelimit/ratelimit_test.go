package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_BurstThenReject(t *testing.T) {
	l := New(1, 2)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.True(t, ok)

	ok, wait := l.Allow("a")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	ok, _ = l.Allow("b")
	assert.True(t, ok, "clients have separate buckets")

	now = now.Add(time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok, "bucket refills")
}

func TestDisabled(t *testing.T) {
	l := New(0, 0)
	assert.False(t, l.Enabled())
	for i := 0; i < 100; i++ {
		ok, _ := l.Allow("a")
		assert.True(t, ok)
	}
	assert.Equal(t, 0, l.Len())
}

func TestCleanup(t *testing.T) {
	l := New(10, 10)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(time.Hour)
	l.Allow("new")

	l.Cleanup(time.Minute)
	assert.Equal(t, 1, l.Len())
}

func TestMiddleware(t *testing.T) {
	l := New(1, 1)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.RemoteAddr = "10.0.0.1:5000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded","kind":"RateLimited","code":429}`, rec.Body.String())
}
