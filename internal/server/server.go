/*
Package server exposes the ranking engine as line-delimited JSON-RPC 2.0.

One request per line on the input, one response per line on the output.
Methods:
  - initialize:  server name and version
  - catalog:     replace the default candidate snapshot
  - search:      rank a snapshot for a query (becomes the current query)
  - click:       attribute a click to the current query
  - feedback:    attribute a 1-5 rating to the current query
  - interaction: record a full interaction
  - preference:  adjust a user preference
  - stats:       learning summary
  - session:     session id and current query
*/
package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/khanglvm/listing-ranker/internal/engine"
	"github.com/khanglvm/listing-ranker/internal/logging"
	"github.com/khanglvm/listing-ranker/internal/scoring"
	"github.com/khanglvm/listing-ranker/internal/version"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeExecution      = -32000
)

// maxLineBytes bounds one request line; catalogs travel inline.
const maxLineBytes = 16 << 20

// Server serves one engine over a request stream.
type Server struct {
	engine *engine.Engine
	log    zerolog.Logger

	mu      sync.RWMutex
	catalog []scoring.Item

	outMu sync.Mutex
	out   io.Writer
}

// NewServer creates a server for e.
func NewServer(e *engine.Engine) *Server {
	return &Server{
		engine: e,
		log:    logging.Component("server"),
		out:    os.Stdout,
	}
}

// SetCatalog replaces the snapshot used by searches that carry no items.
func (s *Server) SetCatalog(items []scoring.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = items
}

func (s *Server) defaultCatalog() []scoring.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Run serves stdin to stdout until stdin closes or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads requests from r and writes responses to w.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.outMu.Lock()
	s.out = w
	s.outMu.Unlock()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		response, err := s.handleRequest(ctx, line)
		if err != nil {
			s.sendError(err)
			continue
		}
		s.sendResponse(response)
	}

	return scanner.Err()
}

// Request is an incoming JSON-RPC request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func result(req *Request, v interface{}) *Response {
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: v}
}

func failure(req *Request, code int, msg string) *Response {
	return &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: code, Message: msg}}
}

// handleRequest processes one request line. Only unparseable input is
// returned as an error; every other failure is a response.
func (s *Server) handleRequest(ctx context.Context, data []byte) (*Response, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC request: %w", err)
	}

	switch req.Method {
	case "initialize":
		return result(&req, map[string]interface{}{
			"serverInfo": map[string]interface{}{
				"name":    "listing-ranker",
				"version": version.Version,
			},
			"session": s.engine.Session(),
		}), nil
	case "catalog":
		return s.handleCatalog(&req), nil
	case "search":
		return s.handleSearch(ctx, &req), nil
	case "click":
		return s.handleClick(&req), nil
	case "feedback":
		return s.handleFeedback(&req), nil
	case "interaction":
		return s.handleInteraction(&req), nil
	case "preference":
		return s.handlePreference(&req), nil
	case "stats":
		return result(&req, s.engine.Stats()), nil
	case "session":
		return result(&req, s.engine.Session()), nil
	default:
		return failure(&req, CodeMethodNotFound, "Method not found"), nil
	}
}

// decodeParams unmarshals params into v. Absent params leave v zero.
func decodeParams(req *Request, v interface{}) *Response {
	if len(req.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return failure(req, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	return nil
}

// sendResponse writes a JSON-RPC response line.
func (s *Server) sendResponse(resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
		data, _ = json.Marshal(failure(&Request{ID: resp.ID}, CodeExecution, "failed to encode response"))
	}

	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.out.Write(append(data, '\n'))
}

// sendError writes a parse error response.
func (s *Server) sendError(err error) {
	s.sendResponse(&Response{
		JSONRPC: "2.0",
		ID:      nil,
		Error:   &RPCError{Code: CodeParseError, Message: err.Error()},
	})
}
