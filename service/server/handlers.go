package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/solgate/service/temporal"
	"github.com/brojonat/solgate/service/wallet"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	healthCheckTimeout = 3 * time.Second
)

var errInvalidParams = errors.New("invalid params")

// number is a JSON number that may also arrive as a numeric string.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", b)
	}
	*n = number(f)
	return nil
}

// integer is a JSON integer that may also arrive as a numeric string.
type integer int

func (i *integer) UnmarshalJSON(b []byte) error {
	var n number
	if err := n.UnmarshalJSON(b); err != nil {
		return err
	}
	if float64(n) != float64(int64(n)) {
		return fmt.Errorf("not an integer: %v", float64(n))
	}
	*i = integer(n)
	return nil
}

// handleBalance returns a handler that reports an account balance.
// GET /balance?pub={address}
// Without pub, the server's own public key is used.
func handleBalance(svc Wallet, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.URL.Query().Get("pub")

		bal, err := svc.Balance(r.Context(), address)
		if err != nil {
			writeWalletError(w, r, err, logger)
			return
		}

		logger.DebugContext(r.Context(), "balance retrieved", "address", bal.Address, "lamports", bal.Lamports)
		writeJSON(w, map[string]interface{}{
			"balance_sol": bal.SOL,
			"lamports":    bal.Lamports,
		}, http.StatusOK)
	})
}

// handleSendSOL returns a handler that transfers SOL from the server signer.
// POST /send_sol {"to": "<address>", "amount_sol": 0.01}
func handleSendSOL(svc Wallet, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			To        string `json:"to"`
			AmountSOL number `json:"amount_sol"`
		}
		if !decodeJSON(w, r, &req, logger) {
			return
		}

		res, err := svc.SendSOL(r.Context(), wallet.SendSOLRequest{
			To:        req.To,
			AmountSOL: float64(req.AmountSOL),
		})
		if err != nil {
			writeWalletError(w, r, err, logger)
			return
		}

		logger.InfoContext(r.Context(), "sol sent", "to", req.To, "lamports", res.Amount, "txid", res.TxID)
		writeJSON(w, res, http.StatusOK)
	})
}

// handleSendToken returns a handler that transfers an SPL token from the
// server signer, creating the recipient's token account when it is missing.
// POST /send_token {"to": "<address>", "mint": "<mint>", "amount": 1.5, "decimals": 6}
func handleSendToken(svc Wallet, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			To       string  `json:"to"`
			Mint     string  `json:"mint"`
			Amount   number  `json:"amount"`
			Decimals integer `json:"decimals"`
		}
		if !decodeJSON(w, r, &req, logger) {
			return
		}

		res, err := svc.SendToken(r.Context(), wallet.SendTokenRequest{
			To:       req.To,
			Mint:     req.Mint,
			Amount:   float64(req.Amount),
			Decimals: int(req.Decimals),
		})
		if err != nil {
			writeWalletError(w, r, err, logger)
			return
		}

		logger.InfoContext(r.Context(), "token sent",
			"to", req.To,
			"mint", req.Mint,
			"amount", res.Amount,
			"created_account", res.CreatedAccount,
			"txid", res.TxID,
		)
		writeJSON(w, res, http.StatusOK)
	})
}

// handleTrade returns a handler that records a simulated trade on-chain.
// POST /trade {"from_token": "SOL", "to_token": "USDC", "amount": 0.1}
// or form-encoded token=USDC&action=buy|sell&amount=0.1.
// Errors use {"message": ...} instead of {"error": ...}.
func handleTrade(svc Wallet, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := parseTradeRequest(w, r)
		if err != nil {
			logger.DebugContext(r.Context(), "invalid trade request", "error", err)
			writeMessage(w, err.Error(), http.StatusBadRequest)
			return
		}

		res, err := svc.Trade(r.Context(), req)
		if err != nil {
			status := statusForError(err)
			if status >= http.StatusInternalServerError {
				logger.ErrorContext(r.Context(), "trade failed", "error", err)
			}
			writeMessage(w, err.Error(), status)
			return
		}

		logger.InfoContext(r.Context(), "trade recorded",
			"from_token", req.FromToken,
			"to_token", req.ToToken,
			"signature", res.Signature,
		)
		writeJSON(w, map[string]string{
			"message":   res.Message,
			"signature": res.Signature,
			"explorer":  res.Explorer,
		}, http.StatusOK)
	})
}

func parseTradeRequest(w http.ResponseWriter, r *http.Request) (wallet.TradeRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			FromToken string `json:"from_token"`
			ToToken   string `json:"to_token"`
			Amount    number `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return wallet.TradeRequest{}, errInvalidParams
		}
		return wallet.TradeRequest{
			FromToken: body.FromToken,
			ToToken:   body.ToToken,
			Amount:    float64(body.Amount),
		}, nil
	}

	if err := r.ParseForm(); err != nil {
		return wallet.TradeRequest{}, errInvalidParams
	}
	token := strings.TrimSpace(r.PostForm.Get("token"))
	if token == "" {
		return wallet.TradeRequest{}, fmt.Errorf("%w: token is required", errInvalidParams)
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(r.PostForm.Get("amount")), 64)
	if err != nil {
		return wallet.TradeRequest{}, fmt.Errorf("%w: amount must be a number", errInvalidParams)
	}

	req := wallet.TradeRequest{Amount: amount}
	switch strings.ToLower(strings.TrimSpace(r.PostForm.Get("action"))) {
	case "buy":
		req.FromToken, req.ToToken = "SOL", token
	case "sell":
		req.FromToken, req.ToToken = token, "SOL"
	default:
		return wallet.TradeRequest{}, fmt.Errorf("%w: action must be buy or sell", errInvalidParams)
	}
	return req, nil
}

// handleStartTransfer returns a handler that starts an async transfer.
// POST /api/v1/transfers {"kind": "sol"|"token", "to": "...", "amount": 1, "mint": "...", "decimals": 6}
func handleStartTransfer(transfers temporal.TransferStarter, svc Wallet, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if transfers == nil {
			writeError(w, "async transfers are not enabled", http.StatusServiceUnavailable)
			return
		}

		var req struct {
			Kind     string  `json:"kind"`
			To       string  `json:"to"`
			Mint     string  `json:"mint"`
			Amount   number  `json:"amount"`
			Decimals integer `json:"decimals"`
		}
		if !decodeJSON(w, r, &req, logger) {
			return
		}

		if !svc.SignerConfigured() {
			writeWalletError(w, r, &wallet.Error{
				Kind: wallet.KindSignerNotConfigured,
				Op:   "transfer",
				Err:  errors.New("Server signer not configured"),
			}, logger)
			return
		}

		id, err := transfers.StartTransfer(r.Context(), temporal.TransferInput{
			Kind:     req.Kind,
			To:       req.To,
			Mint:     req.Mint,
			Amount:   float64(req.Amount),
			Decimals: int(req.Decimals),
		})
		if err != nil {
			if errors.Is(err, temporal.ErrInvalidTransfer) {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.ErrorContext(r.Context(), "failed to start transfer", "error", err)
			writeError(w, "failed to start transfer", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "transfer started", "transfer_id", id, "kind", req.Kind)
		writeJSON(w, map[string]string{"transfer_id": id}, http.StatusAccepted)
	})
}

// handleGetTransfer returns a handler that reports an async transfer's state.
// GET /api/v1/transfers/{id}
func handleGetTransfer(transfers temporal.TransferStarter, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if transfers == nil {
			writeError(w, "async transfers are not enabled", http.StatusServiceUnavailable)
			return
		}

		id := r.PathValue("id")
		if !strings.HasPrefix(id, temporal.TransferIDPrefix) {
			writeError(w, "transfer not found", http.StatusNotFound)
			return
		}

		status, err := transfers.TransferStatus(r.Context(), id)
		if err != nil {
			if errors.Is(err, temporal.ErrTransferNotFound) {
				writeError(w, "transfer not found", http.StatusNotFound)
				return
			}
			logger.ErrorContext(r.Context(), "failed to get transfer status", "transfer_id", id, "error", err)
			writeError(w, "failed to get transfer status", http.StatusInternalServerError)
			return
		}

		writeJSON(w, status, http.StatusOK)
	})
}

// handleHealth reports liveness plus the configured endpoint.
// GET /health
func handleHealth(svc Wallet, rpc RPCEndpoint, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"status":  "ok",
			"network": svc.Network(),
			"signer":  svc.SignerConfigured(),
		}
		if rpc != nil {
			resp["rpc"] = rpc.URL()

			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := rpc.Health(ctx); err != nil {
				logger.WarnContext(r.Context(), "rpc health check failed", "error", err)
				resp["rpc_status"] = "unhealthy"
			} else {
				resp["rpc_status"] = "ok"
			}
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

// decodeJSON reads a JSON request body into v. On failure it writes the
// error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.DebugContext(r.Context(), "failed to decode request", "path", r.URL.Path, "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
			return false
		}
		writeError(w, errInvalidParams.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// statusForError maps a wallet error kind to an HTTP status.
func statusForError(err error) int {
	switch wallet.KindOf(err) {
	case wallet.KindInvalidParams, wallet.KindInvalidAddress:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeWalletError writes a wallet error as {"error": ...}, adding
// create_txid when a token account was created before the failure.
func writeWalletError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "kind", wallet.KindOf(err), "error", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "kind", wallet.KindOf(err), "error", err)
	}

	body := map[string]string{"error": err.Error()}
	if id := wallet.CreateTxIDOf(err); id != "" {
		body["create_txid"] = id
	}
	writeJSON(w, body, status)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{"error": message}, statusCode)
}

// writeMessage writes a JSON {"message": ...} response.
func writeMessage(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{"message": message}, statusCode)
}
