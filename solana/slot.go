package solana

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

const (
	DefaultSlotInterval    = 15 * time.Second
	DefaultBalanceInterval = 30 * time.Second

	lamportsPerSOL = 1e9
)

// LatestSlot returns the last slot seen by TrackLatestSlot, 0 before the first poll
func (g *Gateway) LatestSlot() uint64 {
	return g.latestSlot.Load()
}

// TrackLatestSlot polls for the latest processed slot and reports metrics
func (g *Gateway) TrackLatestSlot(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSlotInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		g.pollSlot(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (g *Gateway) pollSlot(ctx context.Context) {
	slot, err := g.rpc.GetSlot(ctx, rpc.CommitmentProcessed)
	if err != nil {
		if ctx.Err() == nil {
			g.logger.Error("Failed to get Solana slot", "error", err)
		}
		return
	}

	g.latestSlot.Store(slot)

	if g.metrics != nil {
		g.metrics.SetLatestSlot(g.clusterURL, int64(slot))
	}
}

// WalletBalanceMetric tracks the SOL balance of the signing wallet for monitoring
func (g *Gateway) WalletBalanceMetric(ctx context.Context, interval time.Duration) {
	if g.metrics == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultBalanceInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		balance, err := g.rpc.GetBalance(ctx, g.wallet, CommitmentType(g.commitment))
		if err != nil {
			if ctx.Err() == nil {
				g.logger.Error("Failed to get Solana wallet balance", "error", err)
			}
		} else {
			g.metrics.SetWalletBalance(g.wallet.String(), "SOL", float64(balance.Value)/lamportsPerSOL)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
