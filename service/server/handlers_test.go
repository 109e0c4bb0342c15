package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/brojonat/solgate/service/config"
	"github.com/brojonat/solgate/service/keys"
	"github.com/brojonat/solgate/service/metrics"
	"github.com/brojonat/solgate/service/solana"
	"github.com/brojonat/solgate/service/temporal"
	"github.com/brojonat/solgate/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRecipient  = "11111111111111111111111111111111"
	tokenRecipient = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	usdcMint       = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// fakeWallet records requests; we set what it should return.
type fakeWallet struct {
	pub     *solanago.PublicKey
	signer  bool
	network string

	balance  *wallet.Balance
	transfer *wallet.TransferResult
	trade    *wallet.TradeResult
	err      error

	balanceAddrs []string
	solReqs      []wallet.SendSOLRequest
	tokenReqs    []wallet.SendTokenRequest
	tradeReqs    []wallet.TradeRequest
}

func (f *fakeWallet) Balance(ctx context.Context, address string) (*wallet.Balance, error) {
	f.balanceAddrs = append(f.balanceAddrs, address)
	return f.balance, f.err
}

func (f *fakeWallet) SendSOL(ctx context.Context, req wallet.SendSOLRequest) (*wallet.TransferResult, error) {
	f.solReqs = append(f.solReqs, req)
	return f.transfer, f.err
}

func (f *fakeWallet) SendToken(ctx context.Context, req wallet.SendTokenRequest) (*wallet.TransferResult, error) {
	f.tokenReqs = append(f.tokenReqs, req)
	return f.transfer, f.err
}

func (f *fakeWallet) Trade(ctx context.Context, req wallet.TradeRequest) (*wallet.TradeResult, error) {
	f.tradeReqs = append(f.tradeReqs, req)
	return f.trade, f.err
}

func (f *fakeWallet) PublicKey() (solanago.PublicKey, bool) {
	if f.pub == nil {
		return solanago.PublicKey{}, false
	}
	return *f.pub, true
}

func (f *fakeWallet) SignerConfigured() bool { return f.signer }

func (f *fakeWallet) Network() string {
	if f.network == "" {
		return "devnet"
	}
	return f.network
}

type fakeRPC struct {
	url string
	err error
}

func (f *fakeRPC) URL() string                      { return f.url }
func (f *fakeRPC) Health(ctx context.Context) error { return f.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, w *fakeWallet, transfers temporal.TransferStarter) *Server {
	t.Helper()
	cfg := &config.Config{Host: "127.0.0.1", Port: 0, MetricsEnabled: true}
	return New(cfg, w, &fakeRPC{url: "https://api.devnet.solana.com"}, transfers, nil, testLogger())
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func rpcError(msg string) error {
	return &wallet.Error{Kind: wallet.KindRPC, Op: "test", Err: errors.New(msg)}
}

func TestBalance(t *testing.T) {
	w := &fakeWallet{balance: &wallet.Balance{Address: testRecipient, Lamports: 2_500_000_000, SOL: 2.5}}
	h := newTestServer(t, w, nil).Handler()

	rec, body := do(t, h, "GET", "/balance?pub="+testRecipient, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.5, body["balance_sol"])
	assert.Equal(t, float64(2_500_000_000), body["lamports"])
	assert.Equal(t, []string{testRecipient}, w.balanceAddrs)
}

func TestBalance_Errors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "no public key",
			err:            &wallet.Error{Kind: wallet.KindInvalidParams, Op: "balance", Err: errors.New("No public key provided")},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "No public key provided",
		},
		{
			name:           "malformed address",
			err:            &wallet.Error{Kind: wallet.KindInvalidAddress, Op: "balance", Err: errors.New("invalid account address: invalid base58")},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid account address: invalid base58",
		},
		{
			name:           "rpc unreachable",
			err:            rpcError("connection refused"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeWallet{err: tt.err}, nil).Handler()
			rec, body := do(t, h, "GET", "/balance", "", "")
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectedError, body["error"])
		})
	}
}

func TestSendSOL(t *testing.T) {
	w := &fakeWallet{signer: true, transfer: &wallet.TransferResult{TxID: "sig1", Amount: 10_000_000, Decimals: 9}}
	h := newTestServer(t, w, nil).Handler()

	tests := []struct {
		name string
		body string
	}{
		{"json number", `{"to":"` + testRecipient + `","amount_sol":0.01}`},
		{"numeric string", `{"to":"` + testRecipient + `","amount_sol":"0.01"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w.solReqs = nil
			rec, body := do(t, h, "POST", "/send_sol", "application/json", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "sig1", body["txid"])
			require.Len(t, w.solReqs, 1)
			assert.Equal(t, wallet.SendSOLRequest{To: testRecipient, AmountSOL: 0.01}, w.solReqs[0])
		})
	}
}

func TestSendSOL_PathologicalInput(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "malformed JSON",
			body:           `{"to":`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid params",
		},
		{
			name:           "non-numeric amount",
			body:           `{"to":"` + testRecipient + `","amount_sol":"lots"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid params",
		},
		{
			name:           "boolean amount",
			body:           `{"to":"` + testRecipient + `","amount_sol":true}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid params",
		},
		{
			name:           "extremely large request body",
			body:           `{"to":"` + strings.Repeat("A", 2<<20) + `"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "request body too large: maximum size is 1MB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWallet{signer: true}
			h := newTestServer(t, w, nil).Handler()
			rec, body := do(t, h, "POST", "/send_sol", "application/json", tt.body)
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectedError, body["error"])
			assert.Empty(t, w.solReqs, "rejected before reaching the wallet")
		})
	}
}

func TestSendSOL_WalletErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"invalid params", &wallet.Error{Kind: wallet.KindInvalidParams, Err: errors.New("invalid params")}, http.StatusBadRequest},
		{"invalid address", &wallet.Error{Kind: wallet.KindInvalidAddress, Err: errors.New("invalid recipient address")}, http.StatusBadRequest},
		{"signer not configured", &wallet.Error{Kind: wallet.KindSignerNotConfigured, Err: errors.New("Server signer not configured")}, http.StatusInternalServerError},
		{"rpc error", rpcError("blockhash unavailable"), http.StatusInternalServerError},
		{"submission error", &wallet.Error{Kind: wallet.KindSubmission, Err: errors.New("insufficient funds")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeWallet{err: tt.err}, nil).Handler()
			rec, body := do(t, h, "POST", "/send_sol", "application/json", `{"to":"x","amount_sol":1}`)
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestSendToken(t *testing.T) {
	w := &fakeWallet{signer: true, transfer: &wallet.TransferResult{
		TxID:           "sig2",
		Amount:         1_500_000,
		Decimals:       6,
		CreatedAccount: true,
	}}
	h := newTestServer(t, w, nil).Handler()

	rec, body := do(t, h, "POST", "/send_token", "application/json",
		`{"to":"`+testRecipient+`","mint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","amount":"1.5","decimals":"6"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sig2", body["txid"])
	assert.Equal(t, true, body["created_account"])
	assert.NotContains(t, body, "create_txid")

	require.Len(t, w.tokenReqs, 1)
	assert.Equal(t, wallet.SendTokenRequest{
		To:       testRecipient,
		Mint:     "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Amount:   1.5,
		Decimals: 6,
	}, w.tokenReqs[0])
}

func TestSendToken_FractionalDecimalsRejected(t *testing.T) {
	w := &fakeWallet{signer: true}
	h := newTestServer(t, w, nil).Handler()

	rec, body := do(t, h, "POST", "/send_token", "application/json", `{"to":"a","mint":"b","amount":1,"decimals":1.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid params", body["error"])
	assert.Empty(t, w.tokenReqs)
}

// countingGateway fails the test on any network call.
type countingGateway struct {
	t     *testing.T
	calls int
}

func (g *countingGateway) called(name string) {
	g.calls++
	g.t.Errorf("unexpected %s call", name)
}

func (g *countingGateway) Balance(ctx context.Context, addr solanago.PublicKey) (uint64, error) {
	g.called("Balance")
	return 0, nil
}

func (g *countingGateway) AccountInfo(ctx context.Context, addr solanago.PublicKey) (*solana.AccountInfo, error) {
	g.called("AccountInfo")
	return nil, nil
}

func (g *countingGateway) LatestBlockhash(ctx context.Context) (solanago.Hash, error) {
	g.called("LatestBlockhash")
	return solanago.Hash{}, nil
}

func (g *countingGateway) SendTransaction(ctx context.Context, tx *solanago.Transaction, opts solana.SubmitOptions) (solanago.Signature, error) {
	g.called("SendTransaction")
	return solanago.Signature{}, nil
}

func TestSendToken_UnusableAddressRejectedBeforeRPC(t *testing.T) {
	signer, err := keys.FromPrivateKey(solanago.NewWallet().PrivateKey)
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"zero recipient", `{"to":"` + testRecipient + `","mint":"` + usdcMint + `","amount":1,"decimals":6}`},
		{"zero mint", `{"to":"` + tokenRecipient + `","mint":"` + testRecipient + `","amount":1,"decimals":6}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &countingGateway{t: t}
			svc := wallet.NewService(gw, signer, wallet.Config{Network: "devnet", QueueSize: 1}, nil, nil, testLogger())
			defer svc.Close()

			cfg := &config.Config{Host: "127.0.0.1", Port: 0}
			h := New(cfg, svc, &fakeRPC{url: "https://api.devnet.solana.com"}, nil, nil, testLogger()).Handler()

			rec, body := do(t, h, "POST", "/send_token", "application/json", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, body["error"], "all-zero key")
			assert.Equal(t, 0, gw.calls)
		})
	}
}

func TestSendToken_PartialFailureReportsCreatedAccount(t *testing.T) {
	err := &wallet.Error{
		Kind:       wallet.KindSubmission,
		Op:         "send_token",
		Err:        errors.New("blockhash not found"),
		CreateTxID: "create-sig",
	}
	h := newTestServer(t, &fakeWallet{signer: true, err: err}, nil).Handler()

	rec, body := do(t, h, "POST", "/send_token", "application/json", `{"to":"a","mint":"b","amount":1,"decimals":6}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "create-sig", body["create_txid"])
	assert.Contains(t, body["error"], "recipient token account created in create-sig")
}

func TestTrade_JSON(t *testing.T) {
	w := &fakeWallet{signer: true, trade: &wallet.TradeResult{
		Message:   "Simulated trade of 0.1 SOL -> USDC recorded on-chain",
		Signature: "sig3",
		Explorer:  "https://explorer.solana.com/tx/sig3?cluster=devnet",
	}}
	h := newTestServer(t, w, nil).Handler()

	rec, body := do(t, h, "POST", "/trade", "application/json", `{"from_token":"SOL","to_token":"USDC","amount":0.1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sig3", body["signature"])
	assert.Equal(t, "https://explorer.solana.com/tx/sig3?cluster=devnet", body["explorer"])
	assert.Contains(t, body["message"], "Simulated trade")
	assert.Equal(t, []wallet.TradeRequest{{FromToken: "SOL", ToToken: "USDC", Amount: 0.1}}, w.tradeReqs)
}

func TestTrade_Form(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		expected wallet.TradeRequest
	}{
		{"buy spends SOL", "buy", wallet.TradeRequest{FromToken: "SOL", ToToken: "USDC", Amount: 0.25}},
		{"sell receives SOL", "sell", wallet.TradeRequest{FromToken: "USDC", ToToken: "SOL", Amount: 0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWallet{signer: true, trade: &wallet.TradeResult{Message: "ok", Signature: "sig"}}
			h := newTestServer(t, w, nil).Handler()

			form := url.Values{"token": {"USDC"}, "action": {tt.action}, "amount": {"0.25"}}
			rec, _ := do(t, h, "POST", "/trade", "application/x-www-form-urlencoded", form.Encode())
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, []wallet.TradeRequest{tt.expected}, w.tradeReqs)
		})
	}
}

func TestTrade_Errors(t *testing.T) {
	t.Run("unknown action", func(t *testing.T) {
		w := &fakeWallet{signer: true}
		h := newTestServer(t, w, nil).Handler()
		form := url.Values{"token": {"USDC"}, "action": {"hold"}, "amount": {"1"}}
		rec, body := do(t, h, "POST", "/trade", "application/x-www-form-urlencoded", form.Encode())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid params: action must be buy or sell", body["message"])
		assert.Empty(t, w.tradeReqs)
	})

	t.Run("wallet failure uses message key", func(t *testing.T) {
		h := newTestServer(t, &fakeWallet{err: rpcError("node is behind")}, nil).Handler()
		rec, body := do(t, h, "POST", "/trade", "application/json", `{"from_token":"SOL","to_token":"USDC","amount":1}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "node is behind", body["message"])
		assert.NotContains(t, body, "error")
	})
}

func TestTransfers_Disabled(t *testing.T) {
	h := newTestServer(t, &fakeWallet{signer: true}, nil).Handler()

	rec, body := do(t, h, "POST", "/api/v1/transfers", "application/json", `{"kind":"sol","to":"a","amount":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "async transfers are not enabled", body["error"])

	rec, _ = do(t, h, "GET", "/api/v1/transfers/transfer-1", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTransfers_StartAndStatus(t *testing.T) {
	starter := temporal.NewMockTransferStarter()
	h := newTestServer(t, &fakeWallet{signer: true}, starter).Handler()

	rec, body := do(t, h, "POST", "/api/v1/transfers", "application/json",
		`{"kind":"token","to":"`+tokenRecipient+`","mint":"`+usdcMint+`","amount":"2","decimals":6}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id, _ := body["transfer_id"].(string)
	require.Equal(t, "transfer-1", id)

	in, ok := starter.Input(id)
	require.True(t, ok)
	assert.Equal(t, temporal.TransferInput{Kind: "token", To: tokenRecipient, Mint: usdcMint, Amount: 2, Decimals: 6}, in)

	rec, body = do(t, h, "GET", "/api/v1/transfers/"+id, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", body["status"])
	assert.NotContains(t, body, "txid")

	starter.Complete(id, "sig4")
	rec, body = do(t, h, "GET", "/api/v1/transfers/"+id, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "sig4", body["txid"])
	assert.Equal(t, id, body["transfer_id"])
}

func TestTransfers_Errors(t *testing.T) {
	t.Run("invalid kind", func(t *testing.T) {
		starter := temporal.NewMockTransferStarter()
		h := newTestServer(t, &fakeWallet{signer: true}, starter).Handler()
		rec, body := do(t, h, "POST", "/api/v1/transfers", "application/json", `{"kind":"nft","to":"a","amount":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, body["error"], "invalid transfer request")
		assert.Equal(t, 0, starter.StartedCount())
	})

	t.Run("signer missing", func(t *testing.T) {
		starter := temporal.NewMockTransferStarter()
		h := newTestServer(t, &fakeWallet{}, starter).Handler()
		rec, body := do(t, h, "POST", "/api/v1/transfers", "application/json", `{"kind":"sol","to":"a","amount":1}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Server signer not configured", body["error"])
		assert.Equal(t, 0, starter.StartedCount())
	})

	t.Run("temporal unavailable", func(t *testing.T) {
		starter := temporal.NewMockTransferStarter()
		starter.SetStartError(errors.New("dial tcp: connection refused"))
		h := newTestServer(t, &fakeWallet{signer: true}, starter).Handler()
		rec, body := do(t, h, "POST", "/api/v1/transfers", "application/json", `{"kind":"sol","to":"`+testRecipient+`","amount":1}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "failed to start transfer", body["error"])
	})

	rejected := []struct {
		name string
		body string
	}{
		{"malformed recipient", `{"kind":"sol","to":"not-base58!","amount":1}`},
		{"malformed mint", `{"kind":"token","to":"` + tokenRecipient + `","mint":"m","amount":1,"decimals":6}`},
		{"zero token recipient", `{"kind":"token","to":"` + testRecipient + `","mint":"` + usdcMint + `","amount":1,"decimals":6}`},
		{"decimals out of range", `{"kind":"token","to":"` + tokenRecipient + `","mint":"` + usdcMint + `","amount":1,"decimals":300}`},
		{"below one lamport", `{"kind":"sol","to":"` + testRecipient + `","amount":1e-12}`},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			starter := temporal.NewMockTransferStarter()
			h := newTestServer(t, &fakeWallet{signer: true}, starter).Handler()
			rec, body := do(t, h, "POST", "/api/v1/transfers", "application/json", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, body["error"], "invalid transfer request")
			assert.Equal(t, 0, starter.StartedCount())
		})
	}

	t.Run("unknown id", func(t *testing.T) {
		h := newTestServer(t, &fakeWallet{signer: true}, temporal.NewMockTransferStarter()).Handler()
		rec, _ := do(t, h, "GET", "/api/v1/transfers/transfer-99", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec, _ = do(t, h, "GET", "/api/v1/transfers/poll-wallet-1", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	w := &fakeWallet{signer: true, network: "mainnet"}
	srv := New(&config.Config{}, w, &fakeRPC{url: "https://rpc.example"}, nil, nil, testLogger())

	rec, body := do(t, srv.Handler(), "GET", "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "https://rpc.example", body["rpc"])
	assert.Equal(t, "mainnet", body["network"])
	assert.Equal(t, true, body["signer"])
	assert.Equal(t, "ok", body["rpc_status"])

	srv = New(&config.Config{}, w, &fakeRPC{url: "https://rpc.example", err: errors.New("behind")}, nil, nil, testLogger())
	rec, body = do(t, srv.Handler(), "GET", "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code, "the service itself is still up")
	assert.Equal(t, "unhealthy", body["rpc_status"])
}

func TestIndexPage(t *testing.T) {
	pub := solanago.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	w := &fakeWallet{pub: &pub, signer: true, balance: &wallet.Balance{Lamports: 1_500_000_000, SOL: 1.5}}
	srv := newTestServer(t, w, nil)
	require.NoError(t, srv.WithTemplates())

	rec, _ := do(t, srv.Handler(), "GET", "/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, pub.String())
	assert.Contains(t, page, "1.500000000 SOL")
	assert.Contains(t, page, "https://api.devnet.solana.com")
	assert.Equal(t, []string{""}, w.balanceAddrs, "landing page looks up the server's own key")
}

func TestIndexPage_BalanceIsBestEffort(t *testing.T) {
	pub := solanago.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	srv := newTestServer(t, &fakeWallet{pub: &pub, err: rpcError("timeout")}, nil)
	require.NoError(t, srv.WithTemplates())

	rec, _ := do(t, srv.Handler(), "GET", "/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "unavailable")

	rec, _ = do(t, srv.Handler(), "GET", "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, &fakeWallet{}, nil).Handler()
	rec, _ := do(t, h, "OPTIONS", "/send_sol", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandler_RecordsHTTPMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	w := &fakeWallet{balance: &wallet.Balance{}}
	srv := New(&config.Config{MetricsEnabled: true}, w, &fakeRPC{}, nil, m, testLogger())
	h := srv.Handler()

	do(t, h, "GET", "/balance", "", "")
	do(t, h, "POST", "/send_sol", "application/json", `{`)

	count, err := testutil.GatherAndCount(registry, "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNumberUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{`1.5`, 1.5, false},
		{`"1.5"`, 1.5, false},
		{`" 2 "`, 2, false},
		{`null`, 0, false},
		{`"abc"`, 0, true},
		{`""`, 0, true},
		{`[]`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var n number
			err := json.Unmarshal([]byte(tt.in), &n)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, float64(n))
		})
	}
}
