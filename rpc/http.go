// Package rpc exposes the ledger over JSON-RPC 2.0 with a websocket stream of
// committed events.
package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lulo-labs/lulo-sc/core"
	"github.com/lulo-labs/lulo-sc/indexer"
	"github.com/lulo-labs/lulo-sc/observability"
	"github.com/lulo-labs/lulo-sc/storage/eventlog"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader = "X-Request-ID"
)

// ServerConfig carries the optional collaborators and limits of the server.
type ServerConfig struct {
	// AuthToken guards lulo_sendTransaction. Empty disables authentication.
	AuthToken string
	// RequestsPerSecond and Burst bound requests per client address. A zero
	// rate disables limiting.
	RequestsPerSecond float64
	Burst             int
	// TrustProxyHeaders makes the limiter key on X-Forwarded-For.
	TrustProxyHeaders bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	Journal *eventlog.Journal
	Indexer *indexer.Indexer
	Logger  *slog.Logger
}

type Server struct {
	node    *core.Node
	cfg     ServerConfig
	limiter *sourceLimiter
	metrics *observability.RPCMetrics
	logger  *slog.Logger

	serverMu   sync.Mutex
	httpServer *http.Server
}

func NewServer(node *core.Node, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	return &Server{
		node:    node,
		cfg:     cfg,
		limiter: newSourceLimiter(cfg.RequestsPerSecond, cfg.Burst),
		metrics: observability.RPC(),
		logger:  logger,
	}
}

// Handler returns the HTTP surface of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRequestID)
	r.Post("/", s.handle)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	return otelhttp.NewHandler(r, "lulo-rpc")
}

// Serve accepts connections on listener until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()
	s.logger.Info("json-rpc server listening", slog.String("addr", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc: shutdown: %w", err)
		}
		return nil
	}
}

// Start listens on addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

type requestIDKey struct{}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"height":  s.node.Height(),
		"root":    s.node.Root().Hex(),
		"chainId": s.node.ChainID(),
	})
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// statusRecorder captures the JSON-RPC error code written by a handler so the
// request can be counted by outcome.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *Server) fail(w http.ResponseWriter, req *RPCRequest, err error) {
	status, code, message := errorResponse(err)
	if rec, ok := w.(*statusRecorder); ok {
		rec.code = code
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("rpc handler failed", slog.String("method", req.Method), slog.String("error", err.Error()))
	}
	writeError(w, status, req.ID, code, message, err.Error())
}

func (s *Server) invalidParams(w http.ResponseWriter, req *RPCRequest, message string, data interface{}) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.code = codeInvalidParams
	}
	writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, message, data)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	source := s.clientSource(r)
	if !s.limiter.allow(source) {
		s.metrics.RecordThrottle("source")
		s.metrics.Observe(req.Method, codeRateLimited, time.Since(start))
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", source)
		return
	}

	rec := &statusRecorder{ResponseWriter: w}
	s.dispatch(rec, r, req)
	s.metrics.Observe(req.Method, rec.code, time.Since(start))
	s.logger.Debug("rpc request",
		slog.String("request_id", requestID(r.Context())),
		slog.String("method", req.Method),
		slog.String("source", source),
		slog.Int("code", rec.code),
		slog.Duration("duration", time.Since(start)))
}

func (s *Server) dispatch(w *statusRecorder, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "lulo_sendTransaction":
		if authErr := s.requireAuth(r); authErr != nil {
			w.code = authErr.Code
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSendTransaction(w, r, req)
	case "lulo_getStatus":
		s.handleGetStatus(w, r, req)
	case "lulo_getConfig":
		s.handleGetConfig(w, r, req)
	case "lulo_getContract":
		s.handleGetContract(w, r, req)
	case "lulo_getVault":
		s.handleGetVault(w, r, req)
	case "lulo_getApprover":
		s.handleGetApprover(w, r, req)
	case "lulo_getTokenAccount":
		s.handleGetTokenAccount(w, r, req)
	case "lulo_getMint":
		s.handleGetMint(w, r, req)
	case "lulo_getNonce":
		s.handleGetNonce(w, r, req)
	case "lulo_getCurrencies":
		s.handleGetCurrencies(w, r, req)
	case "lulo_deriveAddress":
		s.handleDeriveAddress(w, r, req)
	case "lulo_listContracts":
		s.handleListContracts(w, r, req)
	case "lulo_getEvents":
		s.handleGetEvents(w, r, req)
	default:
		w.code = codeMethodNotFound
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method), nil)
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.cfg.AuthToken == "" {
		return nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) clientSource(r *http.Request) string {
	if s.cfg.TrustProxyHeaders {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			candidate := strings.TrimSpace(strings.Split(forwarded, ",")[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
