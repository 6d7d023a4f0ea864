package testutil

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"math"
	"sync"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	solanago "github.com/strangelove-ventures/solana-counter-api/solana"
)

// Program error codes of the counter program
const (
	ErrCodeOverflow     = 6000
	ErrCodeUnauthorized = 6001
)

type fakeAccount struct {
	owner solana.PublicKey
	data  []byte
}

// FakeCluster is an in-memory stand-in for a Solana RPC node running the counter program.
// Transactions are executed on send and immediately reported at the given status level.
type FakeCluster struct {
	t         *testing.T
	programID solana.PublicKey

	mu          sync.Mutex
	accounts    map[solana.PublicKey]fakeAccount
	statuses    map[solana.Signature]*rpc.SignatureStatusesResult
	calls       map[string]int
	slot        uint64
	blockHeight uint64

	// ConfirmationStatus is reported for executed transactions
	ConfirmationStatus rpc.ConfirmationStatusType
	// SendErr fails SendTransactionWithOpts
	SendErr error
	// StatusErr fails GetSignatureStatuses
	StatusErr error
	// HideStatuses never reports a status, so confirmation waits for blockhash expiry
	HideStatuses bool
	// ExecErr is reported as the execution error of the next transaction
	ExecErr interface{}
	// HeightStep advances the block height on every GetBlockHeight call
	HeightStep uint64
}

func NewFakeCluster(t *testing.T, programID solana.PublicKey) *FakeCluster {
	return &FakeCluster{
		t:                  t,
		programID:          programID,
		accounts:           make(map[solana.PublicKey]fakeAccount),
		statuses:           make(map[solana.Signature]*rpc.SignatureStatusesResult),
		calls:              make(map[string]int),
		slot:               1000,
		blockHeight:        900,
		ConfirmationStatus: rpc.ConfirmationStatusFinalized,
	}
}

var _ solanago.RPCClient = (*FakeCluster)(nil)

func (c *FakeCluster) record(method string) {
	c.calls[method]++
}

// CallCount returns how many times method was called
func (c *FakeCluster) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// TotalCalls returns the number of RPC calls of any kind
func (c *FakeCluster) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.calls {
		total += n
	}
	return total
}

// SetCounter stores a counter account as the program would lay it out
func (c *FakeCluster) SetCounter(addr solana.PublicKey, count uint64, authority solana.PublicKey) {
	data, err := solanago.EncodeCounterAccount(solanago.CounterAccount{Count: count, Authority: authority}, bin.SighashAccount("Counter"))
	if err != nil {
		c.t.Fatalf("encode counter: %v", err)
	}
	c.SetAccount(addr, c.programID, data)
}

// SetAccount stores raw account data
func (c *FakeCluster) SetAccount(addr, owner solana.PublicKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[addr] = fakeAccount{owner: owner, data: data}
}

// Counter decodes the counter stored at addr
func (c *FakeCluster) Counter(addr solana.PublicKey) (*solanago.CounterAccount, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, ok := c.accounts[addr]
	if !ok {
		return nil, false
	}
	decoded, err := solanago.DecodeCounterAccount(acc.data, bin.SighashAccount("Counter"))
	if err != nil {
		return nil, false
	}
	return decoded, true
}

// AdvanceBlockHeight moves the chain forward, expiring older blockhashes
func (c *FakeCluster) AdvanceBlockHeight(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockHeight += n
}

func (c *FakeCluster) GetHealth(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getHealth")
	return rpc.HealthOk, nil
}

func (c *FakeCluster) GetSlot(context.Context, rpc.CommitmentType) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getSlot")
	c.slot++
	return c.slot, nil
}

func (c *FakeCluster) GetBlockHeight(context.Context, rpc.CommitmentType) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getBlockHeight")
	c.blockHeight += c.HeightStep
	return c.blockHeight, nil
}

func (c *FakeCluster) GetBalance(_ context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getBalance")
	return &rpc.GetBalanceResult{Value: 2_500_000_000}, nil
}

func (c *FakeCluster) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getLatestBlockhash")

	var hash [32]byte
	if _, err := rand.Read(hash[:]); err != nil {
		return nil, err
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            solana.HashFromBytes(hash[:]),
			LastValidBlockHeight: c.blockHeight + 150,
		},
	}, nil
}

func (c *FakeCluster) GetAccountInfoWithOpts(_ context.Context, account solana.PublicKey, _ *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getAccountInfo")

	acc, ok := c.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{
		Value: &rpc.Account{
			Lamports: 1_000_000,
			Owner:    acc.owner,
			Data:     rpc.DataBytesOrJSONFromBytes(acc.data),
		},
	}, nil
}

func (c *FakeCluster) GetSignatureStatuses(_ context.Context, _ bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getSignatureStatuses")

	if c.StatusErr != nil {
		return nil, c.StatusErr
	}

	out := &rpc.GetSignatureStatusesResult{Value: make([]*rpc.SignatureStatusesResult, len(sigs))}
	if c.HideStatuses {
		return out, nil
	}
	for i, sig := range sigs {
		out.Value[i] = c.statuses[sig]
	}
	return out, nil
}

func (c *FakeCluster) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("sendTransaction")

	if c.SendErr != nil {
		return solana.Signature{}, c.SendErr
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, err
	}

	sig := tx.Signatures[0]
	execErr := c.ExecErr
	c.ExecErr = nil
	if execErr == nil {
		execErr = c.execute(tx)
	}

	c.statuses[sig] = &rpc.SignatureStatusesResult{
		Slot:               c.slot,
		Err:                execErr,
		ConfirmationStatus: c.ConfirmationStatus,
	}
	return sig, nil
}

// execute applies the counter program instructions and returns an execution error, nil on success
func (c *FakeCluster) execute(tx *solana.Transaction) interface{} {
	staged := make(map[solana.PublicKey]fakeAccount)

	for idx := range tx.Message.Instructions {
		ix := &tx.Message.Instructions[idx]

		program, err := tx.Message.Program(ix.ProgramIDIndex)
		if err != nil || !program.Equals(c.programID) {
			return instructionError(idx, "IncorrectProgramId")
		}

		metas, err := ix.ResolveInstructionAccounts(&tx.Message)
		if err != nil || len(metas) < 2 {
			return instructionError(idx, "NotEnoughAccountKeys")
		}
		counter, authority := metas[0].PublicKey, metas[1].PublicKey
		if !metas[1].IsSigner {
			return instructionError(idx, "MissingRequiredSignature")
		}

		switch {
		case bytes.Equal(ix.Data, bin.SighashInstruction("initialize")):
			if _, exists := c.accounts[counter]; exists {
				return instructionError(idx, map[string]interface{}{"Custom": float64(0)})
			}
			data, _ := solanago.EncodeCounterAccount(solanago.CounterAccount{Authority: authority}, bin.SighashAccount("Counter"))
			staged[counter] = fakeAccount{owner: c.programID, data: data}

		case bytes.Equal(ix.Data, bin.SighashInstruction("increment")):
			acc, ok := c.accounts[counter]
			if !ok {
				return instructionError(idx, map[string]interface{}{"Custom": float64(3012)})
			}
			decoded, err := solanago.DecodeCounterAccount(acc.data, bin.SighashAccount("Counter"))
			if err != nil {
				return instructionError(idx, "InvalidAccountData")
			}
			if !decoded.Authority.Equals(authority) {
				return instructionError(idx, map[string]interface{}{"Custom": float64(ErrCodeUnauthorized)})
			}
			if decoded.Count == math.MaxUint64 {
				return instructionError(idx, map[string]interface{}{"Custom": float64(ErrCodeOverflow)})
			}
			decoded.Count++
			data, _ := solanago.EncodeCounterAccount(*decoded, bin.SighashAccount("Counter"))
			staged[counter] = fakeAccount{owner: acc.owner, data: data}

		default:
			return instructionError(idx, "InvalidInstructionData")
		}
	}

	for addr, acc := range staged {
		c.accounts[addr] = acc
	}
	c.slot++
	return nil
}

func instructionError(idx int, reason interface{}) interface{} {
	return map[string]interface{}{
		"InstructionError": []interface{}{float64(idx), reason},
	}
}

// ErrRPCUnavailable is a canned transport failure for tests
var ErrRPCUnavailable = errors.New("rpc unavailable: connection refused")
