package middlewarectx

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/journal-accounts/internal/http/response"
)

// RateLimiter хранит отдельный token bucket на каждого вызывающего.
// Вызывающий — uid из JWT, а для анонимных запросов адрес клиента.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*visitor
	rps       rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter создаёт ограничитель на rps запросов в секунду с запасом burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow сообщает, можно ли пропустить запрос от key.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.lastSweep.IsZero() {
		l.lastSweep = now
	}
	// простаивающие вызывающие вычищаются не чаще раза за idle
	if now.Sub(l.lastSweep) >= l.idle {
		l.evictIdle(now)
		l.lastSweep = now
	}

	v, ok := l.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *RateLimiter) evictIdle(now time.Time) {
	for k, v := range l.limiters {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.limiters, k)
		}
	}
}

// RateLimitMiddleware отклоняет запросы сверх лимита с кодом 429.
func RateLimitMiddleware(limiter *RateLimiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(callerKey(r)) {
				log.Warn("too many requests", slog.String("caller", callerKey(r)))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if uid, ok := UserUIDFrom(r.Context()); ok {
		return "uid:" + uid
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
