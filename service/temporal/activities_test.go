package temporal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/brojonat/solgate/service/metrics"
	"github.com/brojonat/solgate/service/wallet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

const testRecipient = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

// fakeWallet records requests; we set what it should return.
type fakeWallet struct {
	result *wallet.TransferResult
	err    error

	solReqs   []wallet.SendSOLRequest
	tokenReqs []wallet.SendTokenRequest
}

func (f *fakeWallet) SendSOL(ctx context.Context, req wallet.SendSOLRequest) (*wallet.TransferResult, error) {
	f.solReqs = append(f.solReqs, req)
	return f.result, f.err
}

func (f *fakeWallet) SendToken(ctx context.Context, req wallet.SendTokenRequest) (*wallet.TransferResult, error) {
	f.tokenReqs = append(f.tokenReqs, req)
	return f.result, f.err
}

func executeTransfer(t *testing.T, acts *Activities, input TransferInput) (*TransferOutput, error) {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(acts.ExecuteTransfer)

	val, err := env.ExecuteActivity(acts.ExecuteTransfer, input)
	if err != nil {
		return nil, err
	}
	var out *TransferOutput
	require.NoError(t, val.Get(&out))
	return out, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestActivities_ExecuteTransfer_SOL(t *testing.T) {
	w := &fakeWallet{result: &wallet.TransferResult{
		TxID:        "sig-sol",
		Amount:      10_000_000,
		Decimals:    9,
		ExplorerURL: "https://explorer.solana.com/tx/sig-sol?cluster=devnet",
	}}
	acts := NewActivities(w, nil, quietLogger())

	out, err := executeTransfer(t, acts, TransferInput{Kind: "sol", To: testRecipient, Amount: 0.01})
	require.NoError(t, err)

	require.Len(t, w.solReqs, 1)
	assert.Equal(t, wallet.SendSOLRequest{To: testRecipient, AmountSOL: 0.01}, w.solReqs[0])
	assert.Empty(t, w.tokenReqs)
	assert.Equal(t, "sig-sol", out.TxID)
	assert.Equal(t, uint64(10_000_000), out.Amount)
	assert.Equal(t, 9, out.Decimals)
}

func TestActivities_ExecuteTransfer_Token(t *testing.T) {
	w := &fakeWallet{result: &wallet.TransferResult{
		TxID:           "sig-token",
		Amount:         1_500_000,
		Decimals:       6,
		CreatedAccount: true,
	}}
	acts := NewActivities(w, nil, quietLogger())

	mint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	out, err := executeTransfer(t, acts, TransferInput{Kind: "token", To: testRecipient, Mint: mint, Amount: 1.5, Decimals: 6})
	require.NoError(t, err)

	require.Len(t, w.tokenReqs, 1)
	assert.Equal(t, wallet.SendTokenRequest{To: testRecipient, Mint: mint, Amount: 1.5, Decimals: 6}, w.tokenReqs[0])
	assert.True(t, out.CreatedAccount)
	assert.Equal(t, uint64(1_500_000), out.Amount)
}

func TestActivities_ExecuteTransfer_InvalidInputSkipsWallet(t *testing.T) {
	tests := []struct {
		name  string
		input TransferInput
	}{
		{"unknown kind", TransferInput{Kind: "nft", To: testRecipient, Amount: 1}},
		{"missing recipient", TransferInput{Kind: "sol", Amount: 1}},
		{"zero amount", TransferInput{Kind: "sol", To: testRecipient}},
		{"token without mint", TransferInput{Kind: "token", To: testRecipient, Amount: 1, Decimals: 6}},
		{"malformed recipient", TransferInput{Kind: "sol", To: "not-base58!", Amount: 1}},
		{"below one lamport", TransferInput{Kind: "sol", To: testRecipient, Amount: 1e-12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWallet{}
			acts := NewActivities(w, nil, quietLogger())

			_, err := executeTransfer(t, acts, tt.input)
			require.Error(t, err)

			var appErr *temporal.ApplicationError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, string(wallet.KindInvalidParams), appErr.Type())
			assert.True(t, appErr.NonRetryable())
			assert.Empty(t, w.solReqs)
			assert.Empty(t, w.tokenReqs)
		})
	}
}

func TestActivities_ExecuteTransfer_ErrorKinds(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantType     string
		nonRetryable bool
	}{
		{
			name:         "invalid address",
			err:          &wallet.Error{Kind: wallet.KindInvalidAddress, Op: "send_sol", Err: errors.New("invalid recipient address")},
			wantType:     "InvalidAddress",
			nonRetryable: true,
		},
		{
			name:         "signer missing",
			err:          &wallet.Error{Kind: wallet.KindSignerNotConfigured, Op: "send_sol", Err: errors.New("Server signer not configured")},
			wantType:     "SignerNotConfigured",
			nonRetryable: true,
		},
		{
			name:     "rpc failure",
			err:      &wallet.Error{Kind: wallet.KindRPC, Op: "send_sol", Err: errors.New("connection refused")},
			wantType: "RpcError",
		},
		{
			name:     "untyped error",
			err:      errors.New("boom"),
			wantType: "SubmissionError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acts := NewActivities(&fakeWallet{err: tt.err}, nil, quietLogger())

			_, err := executeTransfer(t, acts, TransferInput{Kind: "sol", To: testRecipient, Amount: 0.5})
			require.Error(t, err)

			var appErr *temporal.ApplicationError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantType, appErr.Type())
			assert.Equal(t, tt.nonRetryable, appErr.NonRetryable())
			assert.Contains(t, appErr.Error(), tt.err.Error())
		})
	}
}

func TestActivities_ExecuteTransfer_PartialTokenTransfer(t *testing.T) {
	walletErr := &wallet.Error{
		Kind:       wallet.KindSubmission,
		Op:         "send_token",
		Err:        errors.New("blockhash not found"),
		CreateTxID: "create-sig",
	}
	acts := NewActivities(&fakeWallet{err: walletErr}, nil, quietLogger())

	_, err := executeTransfer(t, acts, TransferInput{
		Kind:     "token",
		To:       testRecipient,
		Mint:     "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Amount:   1,
		Decimals: 6,
	})
	require.Error(t, err)

	msg, createTxID := failureDetails(err)
	assert.Equal(t, "create-sig", createTxID)
	assert.Contains(t, msg, "recipient token account created in create-sig")
}

func TestActivities_ExecuteTransfer_RecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	ok := NewActivities(&fakeWallet{result: &wallet.TransferResult{TxID: "sig"}}, m, quietLogger())
	_, err := executeTransfer(t, ok, TransferInput{Kind: "sol", To: testRecipient, Amount: 1})
	require.NoError(t, err)

	failing := NewActivities(&fakeWallet{err: errors.New("down")}, m, quietLogger())
	_, err = executeTransfer(t, failing, TransferInput{Kind: "sol", To: testRecipient, Amount: 1})
	require.Error(t, err)

	count, err := testutil.GatherAndCount(registry, "transfer_activity_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per status")
}

func TestTransferInput_Validate(t *testing.T) {
	const usdc = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	const zeroKey = "11111111111111111111111111111111"

	assert.NoError(t, TransferInput{Kind: "sol", To: testRecipient, Amount: 1}.Validate())
	assert.NoError(t, TransferInput{Kind: "sol", To: zeroKey, Amount: 1}.Validate())
	assert.NoError(t, TransferInput{Kind: "token", To: testRecipient, Mint: usdc, Amount: 1, Decimals: 6}.Validate())

	err := TransferInput{Kind: "swap", To: testRecipient, Amount: 1}.Validate()
	assert.ErrorIs(t, err, ErrInvalidTransfer)
	assert.Contains(t, err.Error(), `kind must be "sol" or "token"`)

	rejected := []struct {
		name  string
		input TransferInput
		msg   string
	}{
		{"malformed recipient", TransferInput{Kind: "sol", To: "not-base58!", Amount: 1}, "to:"},
		{"malformed mint", TransferInput{Kind: "token", To: testRecipient, Mint: "m", Amount: 1, Decimals: 6}, "mint:"},
		{"zero mint", TransferInput{Kind: "token", To: testRecipient, Mint: zeroKey, Amount: 1, Decimals: 6}, "mint must not be"},
		{"zero token recipient", TransferInput{Kind: "token", To: zeroKey, Mint: usdc, Amount: 1, Decimals: 6}, "to must not be"},
		{"decimals out of range", TransferInput{Kind: "token", To: testRecipient, Mint: usdc, Amount: 1, Decimals: 300}, "decimals"},
		{"below one lamport", TransferInput{Kind: "sol", To: testRecipient, Amount: 1e-12}, ""},
		{"below one base unit", TransferInput{Kind: "token", To: testRecipient, Mint: usdc, Amount: 1e-9, Decimals: 6}, ""},
		{"overflow", TransferInput{Kind: "sol", To: testRecipient, Amount: 1e20}, ""},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTransfer)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
