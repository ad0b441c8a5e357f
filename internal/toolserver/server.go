// Package toolserver exposes a subset of the client's operations as
// named, schema-typed tools over HTTP, for programmatic invocation by
// tool-calling agents. Every call returns human-readable text; errors
// become an "Error: ..." text payload and never propagate past the
// handler.
package toolserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/policyengine/opencollective-go/internal/opencollective"
)

// Server handles HTTP requests for tool listing and invocation
type Server struct {
	client *opencollective.Client
	mux    *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(client *opencollective.Client) *Server {
	return NewServerWithMux(client, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(client *opencollective.Client, mux *http.ServeMux) *Server {
	s := &Server{
		client: client,
		mux:    mux,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/tools", s.handleListTools)
	s.mux.HandleFunc("/tools/call", s.handleCallTool)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.mux)
}

// listToolsResponse is the payload of GET /tools.
type listToolsResponse struct {
	Tools []Tool `json:"tools"`
}

// callToolRequest is the payload of POST /tools/call.
type callToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(listToolsResponse{Tools: Tools()}); err != nil {
		slog.Error("Error encoding tool list", "error", err)
	}
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req callToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	slog.Info("Tool call", "tool", req.Name)
	result := s.dispatch(r.Context(), req.Name, req.Arguments)
	if result.IsError {
		slog.Error("Tool call failed", "tool", req.Name, "text", firstText(result))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("Error encoding tool result", "error", err)
	}
}

func firstText(result ToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	return result.Content[0].Text
}
