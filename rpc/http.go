package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ocex/core"
	"ocex/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the coupon vault over JSON-RPC 2.0. Owner-gated methods
// additionally require a bearer token; the engine still checks the caller
// address against the stored owner, so the token only authorises the
// transport channel.
type Server struct {
	node      *core.Node
	authToken string
	logger    *slog.Logger
	metrics   *observability.VaultMetrics
}

// NewServer constructs an RPC server for the node. An empty authToken
// disables all owner-gated methods.
func NewServer(node *core.Node, authToken string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		node:      node,
		authToken: strings.TrimSpace(authToken),
		logger:    logger,
		metrics:   observability.Metrics(),
	}
}

// Start serves the JSON-RPC endpoint until the listener fails.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
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

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "owner methods disabled: no auth token configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "missing bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid bearer token"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "invalid_request", "POST required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "invalid_request", "request too large")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	if req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid_request", "jsonrpc must be \"2.0\"")
		return
	}

	started := time.Now()
	handler, ok := s.routes()[req.Method]
	if !ok {
		s.metrics.ObserveRequest(req.Method, "not_found", started)
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", fmt.Sprintf("unknown method %q", req.Method))
		return
	}
	recorder := &statusRecorder{ResponseWriter: w}
	handler(recorder, r, &req)
	outcome := "ok"
	if recorder.failed {
		outcome = "error"
	}
	s.metrics.ObserveRequest(req.Method, outcome, started)
}

// statusRecorder marks whether the handler reported a non-OK status so the
// request counter can label the outcome.
type statusRecorder struct {
	http.ResponseWriter
	failed bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if status >= http.StatusBadRequest {
		r.failed = true
	}
	r.ResponseWriter.WriteHeader(status)
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		"ocex_addCoupon":         s.handleAddCoupon,
		"ocex_addCoupons":        s.handleAddCoupons,
		"ocex_burnCoupons":       s.handleBurnCoupons,
		"ocex_checkCoupon":       s.handleCheckCoupon,
		"ocex_activateCoupon":    s.handleActivateCoupon,
		"ocex_getFreeBalance":    s.handleGetFreeBalance,
		"ocex_withdrawFree":      s.handleWithdrawFree,
		"ocex_withdrawAll":       s.handleWithdrawAll,
		"ocex_transferOwnership": s.handleTransferOwnership,
		"ocex_deposit":           s.handleDeposit,
		"ocex_owner":             s.handleOwner,
		"ocex_instance":          s.handleInstance,
		"ocex_balanceOf":         s.handleBalanceOf,
		"ocex_events":            s.handleEvents,
	}
}
