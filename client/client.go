package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Balance is an account balance.
type Balance struct {
	BalanceSOL float64 `json:"balance_sol"`
	Lamports   uint64  `json:"lamports"`
}

// Transfer is the result of a synchronous SOL or token transfer.
type Transfer struct {
	TxID           string `json:"txid"`
	Amount         uint64 `json:"amount"`
	Decimals       int    `json:"decimals"`
	CreatedAccount bool   `json:"created_account"`
	CreateTxID     string `json:"create_txid,omitempty"`
	ExplorerURL    string `json:"explorer_url,omitempty"`
}

// TradeResult is the result of a simulated trade.
type TradeResult struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Explorer  string `json:"explorer"`
}

// TransferRequest describes an async transfer.
type TransferRequest struct {
	Kind     string  `json:"kind"` // "sol" or "token"
	To       string  `json:"to"`
	Amount   float64 `json:"amount"`
	Mint     string  `json:"mint,omitempty"`
	Decimals int     `json:"decimals,omitempty"`
}

// TransferStatus is the state of an async transfer.
type TransferStatus struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"` // running, completed, failed
	TxID       string `json:"txid,omitempty"`
	CreateTxID string `json:"create_txid,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Health is the server's health report.
type Health struct {
	Status    string `json:"status"`
	RPC       string `json:"rpc"`
	RPCStatus string `json:"rpc_status,omitempty"`
	Network   string `json:"network"`
	Signer    bool   `json:"signer"`
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string

	// CreateTxID is set when a token transfer failed after the recipient's
	// token account was created.
	CreateTxID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed: %s", e.Message)
}

// Client is the HTTP client for the solgate wallet service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new wallet service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Balance returns the balance of address, or of the server's own key when
// address is empty.
func (c *Client) Balance(ctx context.Context, address string) (*Balance, error) {
	path := "/balance"
	if address != "" {
		path += "?pub=" + url.QueryEscape(address)
	}
	var out Balance
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendSOL transfers amountSOL from the server's signer to to.
func (c *Client) SendSOL(ctx context.Context, to string, amountSOL float64) (*Transfer, error) {
	body := map[string]interface{}{
		"to":         to,
		"amount_sol": amountSOL,
	}
	var out Transfer
	if err := c.do(ctx, http.MethodPost, "/send_sol", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("sol sent", "to", to, "txid", out.TxID)
	return &out, nil
}

// SendToken transfers amount whole tokens of mint to to.
func (c *Client) SendToken(ctx context.Context, to, mint string, amount float64, decimals int) (*Transfer, error) {
	body := map[string]interface{}{
		"to":       to,
		"mint":     mint,
		"amount":   amount,
		"decimals": decimals,
	}
	var out Transfer
	if err := c.do(ctx, http.MethodPost, "/send_token", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("token sent", "to", to, "mint", mint, "txid", out.TxID, "created_account", out.CreatedAccount)
	return &out, nil
}

// Trade records a simulated trade of amount from fromToken to toToken.
func (c *Client) Trade(ctx context.Context, fromToken, toToken string, amount float64) (*TradeResult, error) {
	body := map[string]interface{}{
		"from_token": fromToken,
		"to_token":   toToken,
		"amount":     amount,
	}
	var out TradeResult
	if err := c.do(ctx, http.MethodPost, "/trade", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitTransfer starts an async transfer and returns its id.
func (c *Client) SubmitTransfer(ctx context.Context, req TransferRequest) (string, error) {
	var out struct {
		TransferID string `json:"transfer_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/transfers", req, http.StatusAccepted, &out); err != nil {
		return "", err
	}
	c.logger.Debug("transfer submitted", "transfer_id", out.TransferID, "kind", req.Kind)
	return out.TransferID, nil
}

// TransferStatus returns the state of an async transfer.
func (c *Client) TransferStatus(ctx context.Context, id string) (*TransferStatus, error) {
	var out TransferStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/transfers/"+url.PathEscape(id), nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AwaitTransfer polls TransferStatus every interval until the transfer
// leaves the running state or ctx is done.
func (c *Client) AwaitTransfer(ctx context.Context, id string, interval time.Duration) (*TransferStatus, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.TransferStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if status.Status != "running" {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Health returns the server's health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}, wantStatus int, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
// Trade errors arrive as {"message": ...}, everything else as {"error": ...}.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		CreateTxID string `json:"create_txid"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || (errResp.Error == "" && errResp.Message == "") {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	msg := errResp.Error
	if msg == "" {
		msg = errResp.Message
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		CreateTxID: errResp.CreateTxID,
	}
}
