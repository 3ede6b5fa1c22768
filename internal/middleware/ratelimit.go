package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimit throttles requests per authenticated user with a token bucket.
// It must run after Auth; requests without a user share one bucket.
// rps <= 0 disables it.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}

	var (
		mu    sync.Mutex
		users = make(map[string]*userLimiter)
		sweep = time.Now()
	)
	get := func(user string, now time.Time) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if now.Sub(sweep) > limiterIdleTTL {
			for k, v := range users {
				if now.Sub(v.lastSeen) > limiterIdleTTL {
					delete(users, k)
				}
			}
			sweep = now
		}
		ul, ok := users[user]
		if !ok {
			ul = &userLimiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
			users[user] = ul
		}
		ul.lastSeen = now
		return ul.lim
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			res := get(UserIDFrom(r.Context()), now).ReserveN(now, 1)
			if delay := res.DelayFrom(now); delay > 0 {
				res.CancelAt(now)
				w.Header().Set("Retry-After", strconv.Itoa(int(delay/time.Second)+1))
				fail(w, r, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
