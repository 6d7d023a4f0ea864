package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/solana-counter-api/metrics"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

// Routes served by the API, listed in the startup banner
var Routes = []string{
	"GET  /health",
	"POST /api/counter/initialize",
	"POST /api/counter/increment",
	"GET  /api/counter/:counterAddress",
}

type routerOptions struct {
	metrics *metrics.PromMetrics
	limiter *RateLimiter
}

type RouterOption func(*routerOptions)

// WithMetrics records HTTP metrics on m
func WithMetrics(m *metrics.PromMetrics) RouterOption {
	return func(o *routerOptions) {
		o.metrics = m
	}
}

// WithRateLimiter guards the mutating routes with rl instead of a limiter built from settings
func WithRateLimiter(rl *RateLimiter) RouterOption {
	return func(o *routerOptions) {
		o.limiter = rl
	}
}

// NewRouter builds the gin engine serving the counter API
func NewRouter(service CounterService, logger log.Logger, settings types.APISettings, opts ...RouterOption) (*gin.Engine, error) {
	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.limiter == nil {
		o.limiter = NewRateLimiter(settings.RateLimit, settings.RateBurst, o.metrics, logger)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if err := router.SetTrustedProxies(settings.TrustedProxies); err != nil {
		return nil, fmt.Errorf("unable to set trusted proxies on API server: %w", err)
	}

	router.Use(
		RequestID(),
		RequestLogger(logger.With("component", "http")),
		Metrics(o.metrics),
		ErrorHandler(logger),
		SecurityHeaders(),
		CORS(settings.AllowedOrigins),
	)

	h := &handlers{service: service}

	router.GET("/health", h.health)

	counter := router.Group("/api/counter")
	counter.POST("/initialize", o.limiter.Handler(), ValidateBody[types.InitializeCounterRequest](), h.initializeCounter)
	counter.POST("/increment", o.limiter.Handler(), ValidateBody[types.IncrementCounterRequest](), h.incrementCounter)
	counter.GET("/:counterAddress", ValidateParams[types.CounterAddressParams](), h.getCounter)

	router.NoRoute(notFound)

	return router, nil
}
