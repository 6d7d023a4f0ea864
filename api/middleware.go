package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/solana-counter-api/metrics"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "counter-api.request-id"
)

// RequestID tags every request with an id, reusing a well formed incoming one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request once the response has been rendered
func RequestLogger(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("Request served",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client-ip", c.ClientIP(),
			"request-id", c.GetString(requestIDKey),
		)
	}
}

// Metrics records request counts and latencies by matched route
func Metrics(m *metrics.PromMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if m == nil {
			return
		}
		m.ObserveHTTPRequest(c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// ErrorHandler renders errors attached with c.Error and recovered panics as the JSON error envelope.
// Only the last attached error is rendered.
func ErrorHandler(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("%v", r)
				logger.Error("Recovered from panic", "path", c.Request.URL.Path, "error", err)
				renderError(c, logger, err)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		renderError(c, logger, c.Errors.Last().Err)
	}
}

func renderError(c *gin.Context, logger log.Logger, err error) {
	if appErr, ok := types.AsAppError(err); ok {
		if appErr.StatusCode >= http.StatusInternalServerError {
			logger.Error("Request failed", "path", c.Request.URL.Path, "kind", appErr.Kind.String(), "error", appErr,
				"signature", appErr.Signature, "payload", appErr.Payload, "request-id", c.GetString(requestIDKey))
		}
		c.AbortWithStatusJSON(appErr.StatusCode, types.ErrorResponse{
			Error: types.ErrorBody{Message: appErr.Message, Details: appErr.Details},
		})
		return
	}

	logger.Error("Unhandled error", "path", c.Request.URL.Path, "error", err, "request-id", c.GetString(requestIDKey))
	c.AbortWithStatusJSON(http.StatusInternalServerError, types.ErrorResponse{
		Error: types.ErrorBody{
			Message: "Internal server error",
			Details: []types.ErrorDetail{{Message: err.Error()}},
		},
	})
}

// SecurityHeaders sets a conservative set of browser hardening headers
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Content-Security-Policy", "default-src 'self';base-uri 'self';frame-ancestors 'self';object-src 'none'")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-DNS-Prefetch-Control", "off")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")
		h.Set("X-XSS-Protection", "0")
		c.Next()
	}
}

// CORS answers preflight requests and sets the allow headers for permitted origins
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			break
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if origin != "" && (allowAll || originAllowed(allowedOrigins, origin)) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
			c.Header("Access-Control-Expose-Headers", RequestIDHeader)
			c.Header("Access-Control-Max-Age", "3600")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, a := range allowed {
		if a == origin || (strings.HasPrefix(a, ".") && strings.HasSuffix(origin, a)) {
			return true
		}
	}
	return false
}

// RateLimiter hands out a token bucket per client ip
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	metrics  *metrics.PromMetrics
	logger   log.Logger
}

// NewRateLimiter builds a limiter allowing perSecond requests with burst. perSecond <= 0 disables it.
func NewRateLimiter(perSecond float64, burst int, m *metrics.PromMetrics, logger log.Logger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		metrics:  m,
		logger:   logger,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// Prune drops idle limiters that have refilled to a full bucket
func (rl *RateLimiter) Prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, l := range rl.limiters {
		if l.TokensAt(now) >= float64(rl.burst) {
			delete(rl.limiters, key)
		}
	}
}

// Handler rejects requests above the limit with a 429 error
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP()
		if !rl.limiter(key).Allow() {
			rl.logger.Info("Rate limit exceeded", "client-ip", key, "path", c.Request.URL.Path)
			if rl.metrics != nil {
				rl.metrics.IncRateLimited(routeLabel(c))
			}
			c.Header("Retry-After", "1")
			abortWithError(c, types.NewAppError("Too many requests", http.StatusTooManyRequests))
			return
		}

		c.Next()
	}
}

// Run prunes idle limiters every interval until ctx is done
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Prune()
		}
	}
}
