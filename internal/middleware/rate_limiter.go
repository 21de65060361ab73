package middleware

import (
	"net/http"
	"sync"
	"time"

	"nextops/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Fixed-window per-IP limiter. One instance per route group; every instance
// registers itself for the shared purge goroutine so idle IPs do not
// accumulate forever.
type ipLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*ipWindow
}

type ipWindow struct {
	count int
	until time.Time
}

var (
	limitersMu sync.Mutex
	limiters   []*ipLimiter
)

func newIPLimiter(limit int, window time.Duration) *ipLimiter {
	l := &ipLimiter{limit: limit, window: window, windows: make(map[string]*ipWindow)}
	limitersMu.Lock()
	limiters = append(limiters, l)
	limitersMu.Unlock()
	return l
}

// allow counts one request for ip. When the window is exhausted it returns
// false plus the instant the window resets.
func (l *ipLimiter) allow(ip string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[ip]
	if !ok || now.After(w.until) {
		w = &ipWindow{until: now.Add(l.window)}
		l.windows[ip] = w
	}
	w.count++
	return w.count <= l.limit, w.until
}

func (l *ipLimiter) purge(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	purged := 0
	for ip, w := range l.windows {
		if now.After(w.until) {
			delete(l.windows, ip)
			purged++
		}
	}
	return purged
}

// ImportRateLimiter guards the import endpoints. Spreadsheets are parsed
// in-request, so the cap is far below the general API limit.
func ImportRateLimiter() gin.HandlerFunc {
	l := newIPLimiter(10, time.Minute)
	return func(c *gin.Context) {
		if ok, _ := l.allow(c.ClientIP()); !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas importaciones. Intente en 1 minuto."))
			return
		}
		c.Next()
	}
}

// RateLimiter is the general per-IP limiter applied to the whole API.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	l := newIPLimiter(limit, window)
	return func(c *gin.Context) {
		ok, until := l.allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", until.Format(time.RFC1123))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}
}

const purgeInterval = 5 * time.Minute

func init() {
	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for range ticker.C {
			now := time.Now()
			total := 0
			limitersMu.Lock()
			for _, l := range limiters {
				total += l.purge(now)
			}
			limitersMu.Unlock()
			if total > 0 {
				log.Debug().Int("entries_purged", total).Msg("rate limiter purge")
			}
		}
	}()
}
