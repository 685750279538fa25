package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimit 限制同一调用方在窗口内的写请求（上传、更新、删除）数量。
// 已鉴权请求按 owner 计数，其余按来源 IP。读请求不受限制。
func RateLimit(maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	if maxRequests <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter := newWindowLimiter(maxRequests, window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isReadOnly(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow(callerKey(r), time.Now()) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type windowLimiter struct {
	mu          sync.Mutex
	callers     map[string]*windowCounter
	maxRequests int
	window      time.Duration
}

type windowCounter struct {
	count   int
	expires time.Time
}

func newWindowLimiter(maxRequests int, window time.Duration) *windowLimiter {
	return &windowLimiter{
		callers:     make(map[string]*windowCounter),
		maxRequests: maxRequests,
		window:      window,
	}
}

func (l *windowLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.callers) > 1024 {
		for k, c := range l.callers {
			if now.After(c.expires) {
				delete(l.callers, k)
			}
		}
	}

	c, ok := l.callers[key]
	if !ok || now.After(c.expires) {
		l.callers[key] = &windowCounter{count: 1, expires: now.Add(l.window)}
		return true
	}
	if c.count >= l.maxRequests {
		return false
	}
	c.count++
	return true
}

func isReadOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func callerKey(r *http.Request) string {
	if owner := GetOwnerID(r.Context()); owner != "" {
		return "owner:" + owner
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return "ip:" + strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
