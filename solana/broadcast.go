package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/solana-counter-api/types"
)

const (
	confirmationOK        = "confirmed"
	confirmationExecError = "execution_error"
	confirmationFailed    = "failed"
)

// submitAndConfirm signs a single instruction with the wallet, sends it once and
// waits until the configured commitment is reached. There are no retries.
func (g *Gateway) submitAndConfirm(ctx context.Context, logger log.Logger, ix solana.Instruction) (solana.Signature, error) {
	recent, err := g.rpc.GetLatestBlockhash(ctx, CommitmentType(g.commitment))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	if recent == nil || recent.Value == nil {
		return solana.Signature{}, fmt.Errorf("failed to get recent blockhash: empty response")
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		recent.Value.Blockhash,
		solana.TransactionPayer(g.wallet),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(g.wallet) {
			return &g.privateKey
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := g.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: CommitmentType(g.commitment),
	})
	if err != nil {
		logger.Error("Error during broadcast", "error", err)
		return solana.Signature{}, err
	}

	logger = logger.With("signature", sig.String())
	logger.Debug("Submitted transaction, awaiting confirmation", "last_valid_block_height", recent.Value.LastValidBlockHeight)

	if err := g.confirm(ctx, logger, sig, recent.Value.LastValidBlockHeight); err != nil {
		return sig, err
	}

	logger.Info("Transaction confirmed", "commitment", g.commitment.String())
	return sig, nil
}

// confirm polls the signature status until the commitment is reached, the transaction
// fails on chain, or the blockhash it was built with expires.
func (g *Gateway) confirm(ctx context.Context, logger log.Logger, sig solana.Signature, lastValidBlockHeight uint64) error {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		status, err := g.signatureStatus(ctx, sig)
		if err != nil {
			return g.confirmationFailed(logger, sig, err)
		}

		if status != nil {
			if status.Err != nil {
				return g.executionFailed(logger, sig, status.Err)
			}
			if g.commitment.Reached(observedCommitment(status)) {
				g.incConfirmation(confirmationOK)
				return nil
			}
		}

		height, err := g.rpc.GetBlockHeight(ctx, CommitmentType(g.commitment))
		if err != nil {
			return g.confirmationFailed(logger, sig, err)
		}
		if height > lastValidBlockHeight {
			return g.confirmationFailed(logger, sig, fmt.Errorf("block height exceeded: blockhash expired at %d, current %d", lastValidBlockHeight, height))
		}

		select {
		case <-ctx.Done():
			return g.confirmationFailed(logger, sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (g *Gateway) signatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	out, err := g.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

// observedCommitment treats a status without a level and without a confirmation count as rooted
func observedCommitment(status *rpc.SignatureStatusesResult) types.Commitment {
	if status.ConfirmationStatus == "" && status.Confirmations == nil {
		return types.CommitmentFinalized
	}
	return statusCommitment(status.ConfirmationStatus)
}

func (g *Gateway) executionFailed(logger log.Logger, sig solana.Signature, execErr interface{}) error {
	payload, err := json.Marshal(execErr)
	if err != nil {
		payload = []byte(fmt.Sprint(execErr))
	}

	logger.Error("Transaction failed on chain", "error", string(payload))
	g.incConfirmation(confirmationExecError)

	txErr := types.NewTransactionError("Transaction failed: "+string(payload), sig.String(), string(payload))
	if code, ok := customErrorCode(execErr); ok {
		if def, found := g.idl.ErrorByCode(code); found {
			txErr.Details = []types.ErrorDetail{{Field: def.Name, Message: def.Msg}}
		}
	}
	return txErr
}

func (g *Gateway) confirmationFailed(logger log.Logger, sig solana.Signature, cause error) error {
	logger.Error("Failed to confirm transaction", "error", cause)
	g.incConfirmation(confirmationFailed)
	return types.NewTransactionError("Failed to confirm transaction", sig.String(), "")
}

func (g *Gateway) incConfirmation(outcome string) {
	if g.metrics != nil {
		g.metrics.IncConfirmation(outcome)
	}
}

// customErrorCode extracts N from {"InstructionError":[idx,{"Custom":N}]}
func customErrorCode(execErr interface{}) (int, bool) {
	m, ok := execErr.(map[string]interface{})
	if !ok {
		return 0, false
	}
	pair, ok := m["InstructionError"].([]interface{})
	if !ok || len(pair) != 2 {
		return 0, false
	}
	inner, ok := pair[1].(map[string]interface{})
	if !ok {
		return 0, false
	}
	code, present := inner["Custom"]
	if !present {
		return 0, false
	}
	switch v := code.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	default:
		n, err := strconv.Atoi(fmt.Sprint(v))
		return n, err == nil
	}
}
