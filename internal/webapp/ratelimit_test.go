package webapp

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterRefillsAfterWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "clients have separate buckets")

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiterCleanupDropsStaleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }
	rl.Allow("10.0.0.1")

	now = now.Add(2 * time.Hour)
	rl.cleanup()
	assert.Empty(t, rl.clients)
}

func TestZeroCapacityDisablesLimiting(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("10.0.0.1"))
	}
	assert.Empty(t, rl.clients)
}

func TestRetryAfterFollowsWindow(t *testing.T) {
	assert.Equal(t, "60", NewRateLimiter(1, time.Minute).RetryAfter())
	assert.Equal(t, "90", NewRateLimiter(1, 90*time.Second).RetryAfter())
	assert.Equal(t, "2", NewRateLimiter(1, 1500*time.Millisecond).RetryAfter())
	assert.Equal(t, "1", NewRateLimiter(1, 0).RetryAfter())
}

func TestRateLimitedSetsRetryAfterFromWindow(t *testing.T) {
	rl := NewRateLimiter(1, 5*time.Minute)
	h := rateLimited(rl, func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	first := httptest.NewRecorder()
	h(first, httptest.NewRequest(http.MethodPost, "/api/search", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h(second, httptest.NewRequest(http.MethodPost, "/api/search", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "300", second.Header().Get("Retry-After"))
}
