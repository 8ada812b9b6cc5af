package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// ServerVersion is reported in the initialize handshake.
const ServerVersion = "1.0.0"

// Server speaks the JSON-RPC framing over an arbitrary reader/writer pair
// (stdio in production, in-memory pipes in tests), grounded on
// emergent-company-specmcp's internal/mcp.Server.
type Server struct {
	registry *Registry
	logger   *slog.Logger
}

// NewServer builds a Server bound to registry.
func NewServer(registry *Registry, logger *slog.Logger) *Server {
	return &Server{registry: registry, logger: logger}
}

// Run reads newline-delimited JSON-RPC requests from r and writes responses
// to w until r is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := s.handleMessage(ctx, line)
		if resp == nil {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading request stream: %w", err)
	}
	return nil
}

func (s *Server) handleMessage(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return &Response{JSONRPC: "2.0", Error: &RPCError{Code: RPCParseError, Message: "parse error", Data: err.Error()}}
	}
	if req.ID == nil {
		s.logger.Debug("received notification", "method", req.Method)
		return nil
	}

	result, rpcErr := s.dispatch(ctx, &req)
	resp := &Response{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return resp
}

func (s *Server) dispatch(ctx context.Context, req *Request) (any, *RPCError) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(), nil
	case "tools/list":
		return &ToolsListResult{Tools: s.registry.List()}, nil
	case "tools/call":
		return s.handleToolsCall(ctx, req.Params), nil
	default:
		return nil, &RPCError{Code: RPCMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
}

func (s *Server) handleInitialize() *InitializeResult {
	return &InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities:    ServerCapability{Tools: ToolsCapability{}},
		ServerInfo:      ServerInfo{Name: "taskmcpd", Version: ServerVersion},
	}
}

// handleToolsCall dispatches to a registered tool. Per spec.md §6,
// "Unknown tool names return success=false with code VALIDATION_ERROR" —
// this is a tool-envelope failure, not a JSON-RPC error, so it is always
// returned as the JSON-RPC result, never as an RPCError.
func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) *Envelope {
	var call ToolsCallParams
	if err := json.Unmarshal(params, &call); err != nil {
		return Fail(ValidationError, "invalid tools/call params", err.Error())
	}

	tool := s.registry.Get(call.Name)
	if tool == nil {
		return Fail(ValidationError, fmt.Sprintf("unknown tool %q", call.Name), nil)
	}

	s.logger.Info("calling tool", "tool", call.Name)
	return tool.Execute(ctx, call.Arguments)
}
