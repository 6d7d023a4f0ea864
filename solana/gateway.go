package solana

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/solana-counter-api/idl"
	"github.com/strangelove-ventures/solana-counter-api/metrics"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

// DefaultPollInterval is how often signature status is polled while confirming
const DefaultPollInterval = 500 * time.Millisecond

// Gateway is the only component that talks to the cluster. Apart from the
// tracked slot it is immutable after construction and safe for concurrent use.
type Gateway struct {
	rpc        RPCClient
	clusterURL string

	privateKey solana.PrivateKey
	wallet     solana.PublicKey

	programID            solana.PublicKey
	commitment           types.Commitment
	idl                  *idl.IDL
	accountDiscriminator []byte

	pollInterval time.Duration
	logger       log.Logger
	metrics      *metrics.PromMetrics

	latestSlot atomic.Uint64
}

type GatewayOption func(*Gateway)

// WithRPCClient replaces the JSON-RPC client dialed from the cluster url
func WithRPCClient(client RPCClient) GatewayOption {
	return func(g *Gateway) {
		g.rpc = client
	}
}

func WithPollInterval(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

func WithMetrics(m *metrics.PromMetrics) GatewayOption {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// NewGateway derives the wallet and program handle from cfg
func NewGateway(cfg *types.AppConfig, logger log.Logger, opts ...GatewayOption) (*Gateway, error) {
	if _, err := solana.ValidatePrivateKey(cfg.WalletSecretKey); err != nil {
		return nil, fmt.Errorf("unable to parse Solana private key: %w", err)
	}
	privKey := solana.PrivateKey(append([]byte(nil), cfg.WalletSecretKey...))

	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("unable to parse counter program address: %w", err)
	}

	doc, err := idl.Load(cfg.IDLPath)
	if err != nil {
		return nil, err
	}

	discriminator, err := doc.AccountDiscriminator(counterAccountName)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		clusterURL:           cfg.ClusterURL,
		privateKey:           privKey,
		wallet:               privKey.PublicKey(),
		programID:            programID,
		commitment:           cfg.Commitment,
		idl:                  doc,
		accountDiscriminator: discriminator,
		pollInterval:         DefaultPollInterval,
		logger:               logger.With("component", "gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rpc == nil {
		g.rpc = rpc.New(cfg.ClusterURL)
	}
	return g, nil
}

// Connect checks that the RPC endpoint is healthy
func (g *Gateway) Connect(ctx context.Context) error {
	if _, err := g.rpc.GetHealth(ctx); err != nil {
		return fmt.Errorf("unable to connect to Solana RPC: %w", err)
	}
	g.logger.Info("Successfully connected to Solana RPC", "url", g.clusterURL)
	return nil
}

// InitializeCounter creates the counter PDA for seed under the wallet. An empty seed means DefaultSeed.
func (g *Gateway) InitializeCounter(ctx context.Context, seed string) (*types.InitializeResult, error) {
	if seed == "" {
		seed = types.DefaultSeed
	}

	start := time.Now()
	res, err := g.initializeCounter(ctx, seed)
	g.observe(instructionInitialize, start, err)
	if err != nil {
		return nil, types.NewChainError("Failed to initialize counter", err)
	}
	return res, nil
}

func (g *Gateway) initializeCounter(ctx context.Context, seed string) (*types.InitializeResult, error) {
	counter, _, err := DeriveCounterAddress(seed, g.wallet, g.programID)
	if err != nil {
		return nil, err
	}

	logger := g.logger.With("op", instructionInitialize, "counter", counter.String(), "seed", seed)

	ix, err := g.buildInstruction(instructionInitialize, counter)
	if err != nil {
		return nil, fmt.Errorf("failed to build instruction: %w", err)
	}

	sig, err := g.submitAndConfirm(ctx, logger, ix)
	if err != nil {
		return nil, err
	}

	return &types.InitializeResult{
		CounterAddress: counter.String(),
		Seed:           seed,
		Signature:      sig.String(),
	}, nil
}

// IncrementCounter bumps the counter at counterAddress and reports the new count.
// AccountNotFound errors are returned as-is, everything else is wrapped.
func (g *Gateway) IncrementCounter(ctx context.Context, counterAddress string) (*types.IncrementResult, error) {
	start := time.Now()
	res, err := g.incrementCounter(ctx, counterAddress)
	g.observe(instructionIncrement, start, err)
	if err != nil {
		if types.IsAccountNotFound(err) {
			return nil, err
		}
		return nil, types.NewChainError("Failed to increment counter", err)
	}
	return res, nil
}

func (g *Gateway) incrementCounter(ctx context.Context, counterAddress string) (*types.IncrementResult, error) {
	counter, err := ParseAddress(counterAddress)
	if err != nil {
		return nil, err
	}

	// fail with a 404 before paying for a transaction that cannot succeed
	if _, err := g.GetCounterData(ctx, counterAddress); err != nil {
		return nil, err
	}

	logger := g.logger.With("op", instructionIncrement, "counter", counterAddress)

	ix, err := g.buildInstruction(instructionIncrement, counter)
	if err != nil {
		return nil, fmt.Errorf("failed to build instruction: %w", err)
	}

	sig, err := g.submitAndConfirm(ctx, logger, ix)
	if err != nil {
		return nil, err
	}

	view, err := g.GetCounterData(ctx, counterAddress)
	if err != nil {
		return nil, err
	}

	return &types.IncrementResult{
		NewCount:  view.Count,
		Signature: sig.String(),
	}, nil
}

// GetCounterData fetches and decodes the counter account. It is never cached.
func (g *Gateway) GetCounterData(ctx context.Context, counterAddress string) (*types.CounterAccountView, error) {
	view, err := g.getCounterData(ctx, counterAddress)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) || strings.Contains(err.Error(), "Account does not exist") {
			return nil, types.NewAccountNotFoundError(counterAddress)
		}
		return nil, types.NewChainError("Failed to fetch counter data", err)
	}
	return view, nil
}

func (g *Gateway) getCounterData(ctx context.Context, counterAddress string) (*types.CounterAccountView, error) {
	counter, err := ParseAddress(counterAddress)
	if err != nil {
		return nil, err
	}

	res, err := g.rpc.GetAccountInfoWithOpts(ctx, counter, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: CommitmentType(g.commitment),
	})
	if err != nil {
		return nil, err
	}
	if res == nil || res.Value == nil {
		return nil, rpc.ErrNotFound
	}

	acc, err := g.decodeCounter(counter, res.Value)
	if err != nil {
		return nil, err
	}

	return &types.CounterAccountView{
		Authority: acc.Authority.String(),
		Count:     strconv.FormatUint(acc.Count, 10),
	}, nil
}

// GetClusterInfo returns static connection details without touching the network
func (g *Gateway) GetClusterInfo() types.ClusterInfo {
	return types.ClusterInfo{
		ClusterURL: g.clusterURL,
		ProgramID:  g.programID.String(),
	}
}

func (g *Gateway) WalletPublicKey() solana.PublicKey {
	return g.wallet
}

func (g *Gateway) ProgramID() solana.PublicKey {
	return g.programID
}

// DeriveCounterAddress derives the counter PDA for seed under this gateway's wallet
func (g *Gateway) DeriveCounterAddress(seed string) (solana.PublicKey, error) {
	if seed == "" {
		seed = types.DefaultSeed
	}
	addr, _, err := DeriveCounterAddress(seed, g.wallet, g.programID)
	return addr, err
}

func (g *Gateway) observe(op string, start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	g.metrics.ObserveChainOperation(op, status, time.Since(start))
}
