package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/brojonat/solgate/service/config"
	"github.com/brojonat/solgate/service/metrics"
	"github.com/brojonat/solgate/service/temporal"
	"github.com/brojonat/solgate/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Wallet is the wallet service behind the HTTP facade.
type Wallet interface {
	Balance(ctx context.Context, address string) (*wallet.Balance, error)
	SendSOL(ctx context.Context, req wallet.SendSOLRequest) (*wallet.TransferResult, error)
	SendToken(ctx context.Context, req wallet.SendTokenRequest) (*wallet.TransferResult, error)
	Trade(ctx context.Context, req wallet.TradeRequest) (*wallet.TradeResult, error)
	PublicKey() (solanago.PublicKey, bool)
	SignerConfigured() bool
	Network() string
}

// RPCEndpoint is the node the wallet talks to.
type RPCEndpoint interface {
	URL() string
	Health(ctx context.Context) error
}

// Server represents the HTTP server for the wallet service.
type Server struct {
	cfg       *config.Config
	wallet    Wallet
	rpc       RPCEndpoint
	transfers temporal.TransferStarter
	renderer  *TemplateRenderer
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
}

// New creates a new HTTP server with the given dependencies.
// The transfers starter is optional - if nil, async transfer endpoints report 503.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(cfg *config.Config, w Wallet, rpc RPCEndpoint, transfers temporal.TransferStarter, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		wallet:    w,
		rpc:       rpc,
		transfers: transfers,
		metrics:   m,
		logger:    logger,
	}
}

// WithTemplates adds template rendering support to the server using embedded files
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	// Wallet routes
	route("GET /balance", "/balance", handleBalance(s.wallet, s.logger))
	route("POST /send_sol", "/send_sol", handleSendSOL(s.wallet, s.logger))
	route("POST /send_token", "/send_token", handleSendToken(s.wallet, s.logger))
	route("POST /trade", "/trade", handleTrade(s.wallet, s.logger))

	// Async transfer routes
	route("POST /api/v1/transfers", "/api/v1/transfers", handleStartTransfer(s.transfers, s.wallet, s.logger))
	route("GET /api/v1/transfers/{id}", "/api/v1/transfers/{id}", handleGetTransfer(s.transfers, s.logger))
	if s.transfers == nil {
		s.logger.Warn("temporal not configured, async transfer endpoints disabled")
	}

	// HTML pages (if template renderer is configured)
	if s.renderer != nil {
		route("GET /{$}", "/", handleIndexPage(s.renderer, s.wallet, s.rpc, s.logger))
		s.logger.Info("HTML page endpoints enabled")
	}

	route("GET /health", "/health", handleHealth(s.wallet, s.rpc, s.logger))

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil && (s.cfg == nil || s.cfg.MetricsEnabled) {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start listens on the configured address, or on the next port if that
// one is taken, and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := s.listen()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.writeTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err == nil {
		return ln, nil
	}
	s.logger.Warn("primary address unavailable, trying next port",
		"addr", s.cfg.Addr(),
		"fallback", s.cfg.FallbackAddr(),
		"error", err,
	)
	ln, fallbackErr := net.Listen("tcp", s.cfg.FallbackAddr())
	if fallbackErr != nil {
		return nil, fmt.Errorf("failed to listen on %s or %s: %w", s.cfg.Addr(), s.cfg.FallbackAddr(), fallbackErr)
	}
	return ln, nil
}

// writeTimeout leaves room for a request to wait on the submission queue
// and then make its own RPC calls.
func (s *Server) writeTimeout() time.Duration {
	if s.cfg == nil || s.cfg.RPCTimeout <= 0 {
		return 60 * time.Second
	}
	return 2*s.cfg.RPCTimeout + 15*time.Second
}

// Addr returns the address the server is listening on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
