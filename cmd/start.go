package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/solana-counter-api/api"
	"github.com/strangelove-ventures/solana-counter-api/metrics"
	"github.com/strangelove-ventures/solana-counter-api/solana"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

const (
	shutdownTimeout   = 10 * time.Second
	limiterPruneEvery = time.Minute
)

func Start(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the counter API server",

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := a.Logger
			cfg := a.Config

			address, port, err := metricsEndpoint(cmd, cfg)
			if err != nil {
				return err
			}

			promMetrics := metrics.NewPromMetrics()

			gw, err := solana.NewGateway(cfg, logger, solana.WithMetrics(promMetrics))
			if err != nil {
				return fmt.Errorf("error creating gateway error=%w", err)
			}

			// the API still starts so /health answers while the RPC endpoint is down
			if err := gw.Connect(ctx); err != nil {
				logger.Error("Solana RPC is not healthy", "url", cfg.ClusterURL, "error", err)
			}

			go func() {
				if err := promMetrics.Serve(ctx, logger, address, port); err != nil {
					logger.Error("Unable to serve metrics", "error", err)
				}
			}()

			go gw.TrackLatestSlot(ctx, solana.DefaultSlotInterval)
			go gw.WalletBalanceMetric(ctx, solana.DefaultBalanceInterval)

			limiter := api.NewRateLimiter(cfg.API.RateLimit, cfg.API.RateBurst, promMetrics, logger)
			go limiter.Run(ctx, limiterPruneEvery)

			router, err := api.NewRouter(gw, logger, cfg.API, api.WithMetrics(promMetrics), api.WithRateLimiter(limiter))
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
			if err != nil {
				return fmt.Errorf("unable to listen on port %d: %w", cfg.Port, err)
			}

			logBanner(logger, cfg, gw)

			return serve(ctx, logger, &http.Server{
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}, ln)
		},
	}

	return addMetricsFlags(cmd)
}

// metricsEndpoint prefers the command line flags over the config
func metricsEndpoint(cmd *cobra.Command, cfg *types.AppConfig) (string, int16, error) {
	address, port := cfg.Metrics.Address, cfg.Metrics.Port

	if cmd.Flags().Changed(flagMetricsAddress) {
		v, err := cmd.Flags().GetString(flagMetricsAddress)
		if err != nil {
			return "", 0, fmt.Errorf("invalid address error=%w", err)
		}
		address = v
	}
	if cmd.Flags().Changed(flagMetricsPort) {
		v, err := cmd.Flags().GetInt16(flagMetricsPort)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port error=%w", err)
		}
		port = v
	}

	return address, port, nil
}

func logBanner(logger log.Logger, cfg *types.AppConfig, gw *solana.Gateway) {
	logger.Info(fmt.Sprintf("Server is running on port %d", cfg.Port))
	logger.Info("Solana cluster: " + cfg.ClusterURL)
	logger.Info("Program ID: " + gw.ProgramID().String())
	logger.Info("Wallet: " + gw.WalletPublicKey().String())
	for _, route := range api.Routes {
		logger.Info("Endpoint available", "route", route)
	}
}

// serve runs srv on ln until ctx is done, then drains in-flight requests for up to shutdownTimeout
func serve(ctx context.Context, logger log.Logger, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("API server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received, shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("unable to shut down API server: %w", err)
	}

	logger.Info("Server closed")
	return nil
}
