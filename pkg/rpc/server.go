package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	verrors "github.com/dshills/vizier/pkg/errors"
)

// maxRequestBytes bounds a single request body.
const maxRequestBytes = 64 << 20

// HandlerFunc serves one method. params is the raw params object; the
// returned value is marshalled as the result.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Server dispatches JSON-RPC requests received over HTTP POST.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// NewServer creates a server with no registered methods.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handlers: make(map[string]HandlerFunc),
		logger:   logger.With("component", "rpc"),
	}
}

// Register binds a method name to a handler, replacing any previous binding.
func (s *Server) Register(method string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.writeError(w, nil, CodeParseError, "Parse error", err.Error())
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, nil, CodeParseError, "Parse error", err.Error())
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.writeError(w, req.ID, CodeInvalidRequest, "Invalid request", nil)
		return
	}

	s.mu.RLock()
	h, ok := s.handlers[req.Method]
	s.mu.RUnlock()
	if !ok {
		s.writeError(w, req.ID, CodeMethodNotFound, "Method not found", req.Method)
		return
	}

	result, err := h(r.Context(), req.Params)
	if err != nil {
		s.handleError(w, &req, err)
		return
	}
	s.writeResponse(w, req.ID, result)
}

func (s *Server) handleError(w http.ResponseWriter, req *Request, err error) {
	var ve *verrors.ValidationError
	var rpcErr *Error
	switch {
	case errors.As(err, &ve):
		s.writeError(w, req.ID, CodeValidation, ve.Message, map[string]string{"code": ve.Code})
	case errors.Is(err, verrors.ErrNotFound):
		s.writeError(w, req.ID, CodeNotFound, err.Error(), nil)
	case errors.As(err, &rpcErr):
		s.writeError(w, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	default:
		s.logger.Error("method failed", "method", req.Method, "error", err)
		s.writeError(w, req.ID, CodeInternalError, err.Error(), nil)
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, id interface{}, result interface{}) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.writeError(w, id, CodeInternalError, "Error marshaling result", err.Error())
		return
	}
	s.write(w, Response{JSONRPC: "2.0", ID: id, Result: raw})
}

func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	s.write(w, Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	})
}

func (s *Server) write(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("error writing response", "error", err)
	}
}

// InvalidParams wraps a params decoding failure so it is reported with the
// JSON-RPC invalid-params code.
func InvalidParams(err error) error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid params", Data: err.Error()}
}
