package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimit_OnlyMutatingRequests(t *testing.T) {
	handler := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(method, remote string) int {
		req := httptest.NewRequest(method, "/records", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do(http.MethodPost, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusNoContent, do(http.MethodPut, "10.0.0.1:5678"))
	assert.Equal(t, http.StatusTooManyRequests, do(http.MethodDelete, "10.0.0.1:1234"))

	// 读请求和其他来源不受影响
	assert.Equal(t, http.StatusNoContent, do(http.MethodGet, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusNoContent, do(http.MethodPost, "10.0.0.2:1234"))
}

func TestRateLimit_Disabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := RateLimit(0, time.Minute)(next)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestWindowLimiter_Expiry(t *testing.T) {
	l := newWindowLimiter(1, time.Minute)
	now := time.Now()

	assert.True(t, l.Allow("a", now))
	assert.False(t, l.Allow("a", now.Add(30*time.Second)))
	assert.True(t, l.Allow("a", now.Add(2*time.Minute)))
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	assert.Equal(t, "ip:192.0.2.1", callerKey(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.5", callerKey(req))

	req = req.WithContext(context.WithValue(req.Context(), OwnerContextKey{}, "user-1"))
	assert.Equal(t, "owner:user-1", callerKey(req))
}
