package solana_test

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	solanago "github.com/strangelove-ventures/solana-counter-api/solana"
	testutil "github.com/strangelove-ventures/solana-counter-api/test_util"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

func TestDeriveCounterAddressDeterministic(t *testing.T) {
	gw, _, _ := testutil.GatewaySetup(t)

	first, err := gw.DeriveCounterAddress("counter")
	require.NoError(t, err)
	second, err := gw.DeriveCounterAddress("counter")
	require.NoError(t, err)
	require.Equal(t, first, second)

	defaulted, err := gw.DeriveCounterAddress("")
	require.NoError(t, err)
	require.Equal(t, first, defaulted)

	other, err := gw.DeriveCounterAddress("other")
	require.NoError(t, err)
	require.NotEqual(t, first, other)

	_, _, err = solanago.DeriveCounterAddress(strings.Repeat("s", 33), gw.WalletPublicKey(), gw.ProgramID())
	require.Error(t, err)
}

func TestInitializeCounter(t *testing.T) {
	gw, cluster, _ := testutil.GatewaySetup(t)
	ctx := context.Background()

	res, err := gw.InitializeCounter(ctx, "")
	require.NoError(t, err)
	require.Equal(t, types.DefaultSeed, res.Seed)
	require.NotEmpty(t, res.Signature)

	expected, err := gw.DeriveCounterAddress(types.DefaultSeed)
	require.NoError(t, err)
	require.Equal(t, expected.String(), res.CounterAddress)

	acc, ok := cluster.Counter(expected)
	require.True(t, ok)
	require.Equal(t, uint64(0), acc.Count)
	require.Equal(t, gw.WalletPublicKey(), acc.Authority)

	// same seed and wallet address the same account, which the program refuses to re-create
	_, err = gw.InitializeCounter(ctx, types.DefaultSeed)
	require.Error(t, err)
	appErr, ok := types.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, types.KindChain, appErr.Kind)
	require.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
	require.True(t, strings.HasPrefix(appErr.Message, "Failed to initialize counter: Transaction failed: "))
	require.Contains(t, appErr.Message, "Transaction signature: ")
}

func TestIncrementCounter(t *testing.T) {
	gw, _, _ := testutil.GatewaySetup(t)
	ctx := context.Background()

	created, err := gw.InitializeCounter(ctx, "inc")
	require.NoError(t, err)

	view, err := gw.GetCounterData(ctx, created.CounterAddress)
	require.NoError(t, err)
	require.Equal(t, "0", view.Count)
	require.Equal(t, gw.WalletPublicKey().String(), view.Authority)

	for want := 1; want <= 3; want++ {
		res, err := gw.IncrementCounter(ctx, created.CounterAddress)
		require.NoError(t, err)
		require.NotEmpty(t, res.Signature)
		require.Equal(t, strconv.Itoa(want), res.NewCount)
	}
}

func TestIncrementLargeCountKeepsPrecision(t *testing.T) {
	gw, cluster, _ := testutil.GatewaySetup(t)

	addr, err := gw.DeriveCounterAddress("big")
	require.NoError(t, err)
	cluster.SetCounter(addr, 1<<60, gw.WalletPublicKey())

	res, err := gw.IncrementCounter(context.Background(), addr.String())
	require.NoError(t, err)
	require.Equal(t, "1152921504606846977", res.NewCount)
}

func TestIncrementMissingAccount(t *testing.T) {
	gw, cluster, _ := testutil.GatewaySetup(t)

	addr, err := gw.DeriveCounterAddress("missing")
	require.NoError(t, err)

	_, err = gw.IncrementCounter(context.Background(), addr.String())
	require.True(t, types.IsAccountNotFound(err))
	require.EqualError(t, err, "Account not found: "+addr.String())
	require.Zero(t, cluster.CallCount("sendTransaction"))
}

func TestIncrementExecutionError(t *testing.T) {
	gw, cluster, _ := testutil.GatewaySetup(t)
	ctx := context.Background()

	created, err := gw.InitializeCounter(ctx, "")
	require.NoError(t, err)

	cluster.ExecErr = map[string]interface{}{
		"InstructionError": []interface{}{float64(0), map[string]interface{}{"Custom": float64(testutil.ErrCodeUnauthorized)}},
	}

	_, err = gw.IncrementCounter(ctx, created.CounterAddress)
	appErr, ok := types.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
	require.Contains(t, appErr.Message, `Transaction failed: {"InstructionError":[0,{"Custom":6001}]}`)
	require.Regexp(t, `Transaction signature: [1-9A-HJ-NP-Za-km-z]{64,88}$`, appErr.Message)
	require.Equal(t, []types.ErrorDetail{{Field: "Unauthorized", Message: "Unauthorized: Only the counter authority can perform this action"}}, appErr.Details)

	var txErr *types.AppError
	require.True(t, errors.As(errors.Unwrap(err), &txErr))
	require.Equal(t, types.KindTransaction, txErr.Kind)
	require.NotEmpty(t, txErr.Signature)
	require.Equal(t, `{"InstructionError":[0,{"Custom":6001}]}`, txErr.Payload)
}

func TestConfirmationFailed(t *testing.T) {
	gw, cluster, _ := testutil.GatewaySetup(t)
	cluster.StatusErr = testutil.ErrRPCUnavailable

	_, err := gw.InitializeCounter(context.Background(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Failed to initialize counter: Failed to confirm transaction. Transaction signature: ")

	var txErr *types.AppError
	require.True(t, errors.As(errors.Unwrap(err), &txErr))
	require.Equal(t, types.KindTransaction, txErr.Kind)
	require.Empty(t, txErr.Payload)
}

func TestConfirmationBlockhashExpiry(t *testing.T) {
	gw, cluster, _ := testutil.GatewaySetup(t)
	cluster.HideStatuses = true
	cluster.HeightStep = 100

	_, err := gw.InitializeCounter(context.Background(), "")
	require.ErrorContains(t, err, "Failed to confirm transaction")
}

func TestConfirmationWaitsForCommitment(t *testing.T) {
	gw, cluster, _ := testutil.GatewaySetup(t)

	// processed never satisfies the confirmed commitment of the test config
	cluster.ConfirmationStatus = rpc.ConfirmationStatusProcessed
	cluster.HeightStep = 50

	_, err := gw.InitializeCounter(context.Background(), "")
	require.ErrorContains(t, err, "Failed to confirm transaction")
	require.Greater(t, cluster.CallCount("getSignatureStatuses"), 1)
}

func TestConfirmationHonoursContext(t *testing.T) {
	gw, cluster, _ := testutil.GatewaySetup(t)
	cluster.HideStatuses = true

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gw.InitializeCounter(ctx, "")
	require.ErrorContains(t, err, "Failed to confirm transaction")
}

func TestSendFailureIsWrapped(t *testing.T) {
	gw, cluster, _ := testutil.GatewaySetup(t)
	cluster.SendErr = errors.New("Transaction simulation failed: Blockhash not found")

	_, err := gw.InitializeCounter(context.Background(), "")
	require.EqualError(t, err, "Failed to initialize counter: Transaction simulation failed: Blockhash not found")
}

func TestGetCounterDataErrors(t *testing.T) {
	gw, cluster, _ := testutil.GatewaySetup(t)
	ctx := context.Background()

	missing := solana.NewWallet().PublicKey()
	_, err := gw.GetCounterData(ctx, missing.String())
	appErr, ok := types.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, appErr.StatusCode)
	require.Equal(t, "Account not found: "+missing.String(), appErr.Message)

	foreign := solana.NewWallet().PublicKey()
	cluster.SetAccount(foreign, solana.SystemProgramID, make([]byte, 48))
	_, err = gw.GetCounterData(ctx, foreign.String())
	require.ErrorContains(t, err, "Failed to fetch counter data: account "+foreign.String()+" is owned by")

	wrongType := solana.NewWallet().PublicKey()
	cluster.SetAccount(wrongType, gw.ProgramID(), make([]byte, 48))
	_, err = gw.GetCounterData(ctx, wrongType.String())
	require.ErrorContains(t, err, "discriminator mismatch")

	_, err = gw.GetCounterData(ctx, "not-an-address")
	require.EqualError(t, err, "Failed to fetch counter data: Invalid public key input: not-an-address")
}

type accountMissingRPC struct {
	*testutil.FakeCluster
}

func (accountMissingRPC) GetAccountInfoWithOpts(context.Context, solana.PublicKey, *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	return nil, errors.New("Account does not exist or has no data 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
}

func TestAccountDoesNotExistMessageIsNotFound(t *testing.T) {
	cfg := testutil.ConfigSetup(t)
	cluster := testutil.NewFakeCluster(t, solana.MustPublicKeyFromBase58(cfg.ProgramID))

	gw, err := solanago.NewGateway(cfg, testutil.TestLogger, solanago.WithRPCClient(accountMissingRPC{cluster}))
	require.NoError(t, err)

	addr := solana.NewWallet().PublicKey().String()
	_, err = gw.GetCounterData(context.Background(), addr)
	require.True(t, types.IsAccountNotFound(err))
}

func TestGetClusterInfoMakesNoRPCCalls(t *testing.T) {
	gw, cluster, cfg := testutil.GatewaySetup(t)

	info := gw.GetClusterInfo()
	require.Equal(t, cfg.ClusterURL, info.ClusterURL)
	require.Equal(t, cfg.ProgramID, info.ProgramID)
	require.Zero(t, cluster.TotalCalls())
}

func TestNewGatewayRejectsBadConfig(t *testing.T) {
	cfg := testutil.ConfigSetup(t)
	cfg.WalletSecretKey = []byte{1, 2, 3}
	_, err := solanago.NewGateway(cfg, testutil.TestLogger)
	require.ErrorContains(t, err, "unable to parse Solana private key")

	cfg = testutil.ConfigSetup(t)
	cfg.ProgramID = "nope"
	_, err = solanago.NewGateway(cfg, testutil.TestLogger)
	require.ErrorContains(t, err, "unable to parse counter program address")
}

func TestDecodeCounterAccount(t *testing.T) {
	disc := bin.SighashAccount("Counter")
	authority := solana.NewWallet().PublicKey()

	data, err := solanago.EncodeCounterAccount(solanago.CounterAccount{Count: 42, Authority: authority}, disc)
	require.NoError(t, err)
	require.Len(t, data, 8+8+32)

	acc, err := solanago.DecodeCounterAccount(data, disc)
	require.NoError(t, err)
	require.Equal(t, uint64(42), acc.Count)
	require.Equal(t, authority, acc.Authority)

	_, err = solanago.DecodeCounterAccount(data[:20], disc)
	require.Error(t, err)
}

func TestTrackLatestSlot(t *testing.T) {
	gw, cluster, _ := testutil.GatewaySetup(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		gw.TrackLatestSlot(ctx, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return gw.LatestSlot() > 0 }, time.Second, time.Millisecond)
	require.Greater(t, cluster.CallCount("getSlot"), 0)

	cancel()
	<-done
}
