package solana

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/strangelove-ventures/solana-counter-api/types"
)

// RPCClient is the subset of the Solana JSON-RPC API the gateway needs.
// *rpc.Client satisfies it.
type RPCClient interface {
	GetHealth(ctx context.Context) (string, error)
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

var _ RPCClient = (*rpc.Client)(nil)

const (
	instructionInitialize = "initialize"
	instructionIncrement  = "increment"

	counterAccountName = "Counter"
)

// CommitmentType maps the configured commitment onto the RPC enum
func CommitmentType(c types.Commitment) rpc.CommitmentType {
	switch c {
	case types.CommitmentProcessed:
		return rpc.CommitmentProcessed
	case types.CommitmentFinalized:
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

// statusCommitment maps a signature confirmation status back onto a commitment level
func statusCommitment(s rpc.ConfirmationStatusType) types.Commitment {
	switch s {
	case rpc.ConfirmationStatusFinalized:
		return types.CommitmentFinalized
	case rpc.ConfirmationStatusConfirmed:
		return types.CommitmentConfirmed
	case rpc.ConfirmationStatusProcessed:
		return types.CommitmentProcessed
	default:
		return 0
	}
}
