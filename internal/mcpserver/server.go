// Package mcpserver exposes the engine's Install/Remove/List/Sync
// operations as MCP tools so an AI coding assistant can manage its own
// extensions directly, instead of shelling out to the CLI (spec §4,
// supplemented control surface). It runs over stdio — PACC's MCP surface
// is a local tool invoked by the assistant process, never a network
// listener (the engine's transport Non-goal still applies).
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/roivaz/pacc/internal/engine"
	"github.com/roivaz/pacc/internal/kinds"
	"github.com/roivaz/pacc/internal/source"
	"github.com/roivaz/pacc/internal/store"
	"github.com/roivaz/pacc/internal/txn"
)

// Config selects which scope root backs the tool handlers.
type Config struct {
	ScopeRoot  string
	Scope      kinds.Scope
	Strict     bool
	Force      bool
	LockBudget time.Duration
}

// Server wraps an mcp-go MCPServer with PACC's tool set registered.
type Server struct {
	MCP *server.MCPServer
	eng *engine.Engine
}

// New builds the MCP tool server for cfg's scope.
func New(cfg Config) *Server {
	eng := engine.New(cfg.ScopeRoot, cfg.Scope, cfg.Strict, cfg.Force, cfg.LockBudget)

	s := server.NewMCPServer(
		"pacc",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	srv := &Server{MCP: s, eng: eng}

	s.AddTool(mcp.NewTool("pacc_install",
		mcp.WithDescription("Install one or more extensions (hooks, MCP servers, agents, commands or plugins) from a local directory into this scope."),
		mcp.WithString("sourcePath", mcp.Required(), mcp.Description("Directory to scan for installable extensions")),
	), srv.handleInstall)

	s.AddTool(mcp.NewTool("pacc_list",
		mcp.WithDescription("List every extension currently installed in this scope."),
	), srv.handleList)

	s.AddTool(mcp.NewTool("pacc_remove",
		mcp.WithDescription("Remove an installed extension by kind and logical name."),
		mcp.WithString("kind", mcp.Required(), mcp.Enum("hooks", "mcpServers", "agents", "commands")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Logical name of the extension to remove")),
	), srv.handleRemove)

	s.AddTool(mcp.NewTool("pacc_sync",
		mcp.WithDescription("Resolve a team sync document and install every extension it pins into this scope."),
		mcp.WithString("syncDocPath", mcp.Required(), mcp.Description("Path to a .pacc-sync.yaml document")),
	), srv.handleSync)

	return srv
}

// Serve blocks, handling MCP requests over stdio until the client closes
// stdin or the process is signalled; ctx is not consulted.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.MCP)
}

func (s *Server) handleInstall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourcePath, err := req.RequireString("sourcePath")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	candidates, err := source.NewLocalDir(sourcePath).Scan()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.eng.Install(candidates, store.PreferIncoming)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return resultToolResult(result)
}

func (s *Server) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.eng.List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := json.Marshal(records)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kindStr, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key := kinds.Key{Kind: kinds.Kind(kindStr), LogicalName: name}
	if !key.Kind.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown kind %q", kindStr)), nil
	}
	result, err := s.eng.Remove([]kinds.Key{key})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return resultToolResult(result)
}

func (s *Server) handleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("syncDocPath")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := source.LoadSyncDoc(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.eng.Sync(doc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return resultToolResult(result)
}

func resultToolResult(result txn.TransactionResult) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if result.Kind == txn.ResultAborted {
		return mcp.NewToolResultError(string(b)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
