package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"
	"golang.org/x/time/rate"

	"hintwheel/internal/constants"
	"hintwheel/internal/util"
)

var cspPolicy = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'; object-src 'none'; base-uri 'self'; form-action 'self'; frame-ancestors 'none';"

func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Security-Policy", cspPolicy)
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
		}
		c.Next()
	}
}

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.Request.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), constants.RequestIDKey, reqID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-Id", reqID)
		c.Next()
	}
}

// CacheHeadersMiddleware marks the API no-store and static assets
// cacheable for StaticCacheAge.
func (a *API) CacheHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.IsProduction && strings.HasPrefix(c.Request.URL.Path, "/public/") {
			cachecontrol.New(cachecontrol.Config{
				Public: true,
				MaxAge: cachecontrol.Duration(a.StaticCacheAge),
			})(c)
			c.Header("Vary", "Accept-Encoding")
			return
		}
		cachecontrol.New(cachecontrol.Config{
			NoStore:        true,
			NoCache:        true,
			MustRevalidate: true,
		})(c)
	}
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func (a *API) getLimiter(key string) *rate.Limiter {
	a.limiterMu.RLock()
	entry, ok := a.limiters[key]
	a.limiterMu.RUnlock()
	if ok {
		a.limiterMu.Lock()
		if entry, ok = a.limiters[key]; ok {
			entry.lastAccess = time.Now()
			a.limiterMu.Unlock()
			return entry.limiter
		}
		a.limiterMu.Unlock()
	}

	a.limiterMu.Lock()
	defer a.limiterMu.Unlock()
	if a.limiters == nil {
		a.limiters = make(map[string]*limiterEntry)
	}
	if entry, ok = a.limiters[key]; ok {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	rps := a.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	burst := a.RateLimitBurst
	if burst <= 0 {
		burst = rps
	}
	entry = &limiterEntry{
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), burst),
		lastAccess: time.Now(),
	}
	a.limiters[key] = entry
	return entry.limiter
}

// RateLimitMiddleware applies the per-IP request limiter, a coarse
// shield in front of the per-user quota gate.
func (a *API) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.getLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "Too many requests. Please slow down."})
			return
		}
		c.Next()
	}
}

// CleanupStaleLimiters drops limiters unused for longer than ttl.
func (a *API) CleanupStaleLimiters(ttl time.Duration) int {
	a.limiterMu.Lock()
	defer a.limiterMu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for key, entry := range a.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(a.limiters, key)
			removed++
		}
	}
	if removed > 0 {
		util.LogInfo("Cleaned up %d stale rate limiters", removed)
	}
	return removed
}

func (a *API) limiterCount() int {
	a.limiterMu.RLock()
	defer a.limiterMu.RUnlock()
	return len(a.limiters)
}
