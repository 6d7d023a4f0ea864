package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cosmossdk.io/log"
)

type PromMetrics struct {
	WalletBalance     *prometheus.GaugeVec
	LatestSlot        *prometheus.GaugeVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	RateLimited       *prometheus.CounterVec
	ChainOperations   *prometheus.CounterVec
	ChainDuration     *prometheus.HistogramVec
	ConfirmationTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPromMetrics registers all collectors on a private registry
func NewPromMetrics() *PromMetrics {
	reg := prometheus.NewRegistry()

	// labels
	var (
		walletLabels       = []string{"address", "denom"}
		slotLabels         = []string{"cluster"}
		httpLabels         = []string{"method", "route", "status"}
		httpDurationLabels = []string{"method", "route"}
		rateLimitLabels    = []string{"route"}
		chainLabels        = []string{"op", "status"}
		chainDurationLabel = []string{"op"}
		confirmationLabels = []string{"outcome"}
	)

	m := &PromMetrics{
		WalletBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "counter_api_wallet_balance",
			Help: "The current balance of the signing wallet",
		}, walletLabels),
		LatestSlot: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "counter_api_cluster_latest_slot",
			Help: "The latest processed slot seen on the cluster",
		}, slotLabels),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "counter_api_http_requests_total",
			Help: "HTTP requests served, by route and status code",
		}, httpLabels),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "counter_api_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, httpDurationLabels),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "counter_api_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}, rateLimitLabels),
		ChainOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "counter_api_chain_operations_total",
			Help: "Counter program operations: initialize, increment",
		}, chainLabels),
		ChainDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "counter_api_chain_operation_duration_seconds",
			Help:    "Submit plus confirmation latency of counter program operations",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60, 90},
		}, chainDurationLabel),
		ConfirmationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "counter_api_confirmation_total",
			Help: "Transaction confirmation outcomes: confirmed, execution_error, failed",
		}, confirmationLabels),
		registry: reg,
	}

	reg.MustRegister(m.WalletBalance)
	reg.MustRegister(m.LatestSlot)
	reg.MustRegister(m.HTTPRequests)
	reg.MustRegister(m.HTTPDuration)
	reg.MustRegister(m.RateLimited)
	reg.MustRegister(m.ChainOperations)
	reg.MustRegister(m.ChainDuration)
	reg.MustRegister(m.ConfirmationTotal)

	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *PromMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on address:port until ctx is done
func (m *PromMetrics) Serve(ctx context.Context, logger log.Logger, address string, port int16) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", address, port),
		Handler:     mux,
		ReadTimeout: 3 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func (m *PromMetrics) SetWalletBalance(address, denom string, balance float64) {
	m.WalletBalance.WithLabelValues(address, denom).Set(balance)
}

func (m *PromMetrics) SetLatestSlot(cluster string, slot int64) {
	m.LatestSlot.WithLabelValues(cluster).Set(float64(slot))
}

func (m *PromMetrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *PromMetrics) IncRateLimited(route string) {
	m.RateLimited.WithLabelValues(route).Inc()
}

func (m *PromMetrics) ObserveChainOperation(op, status string, d time.Duration) {
	m.ChainOperations.WithLabelValues(op, status).Inc()
	m.ChainDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *PromMetrics) IncConfirmation(outcome string) {
	m.ConfirmationTotal.WithLabelValues(outcome).Inc()
}
