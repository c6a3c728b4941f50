// Package mcpserver exposes the templates and analyzers as an MCP server
// over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"pmat/internal/actions"
	"pmat/internal/logging"
	"pmat/internal/templates"
)

// TemplateMIMEType is advertised for every template resource.
const TemplateMIMEType = "text/x-go-template"

// Server wires the actions into an mcp-go server.
type Server struct {
	env *actions.Env
	mcp *server.MCPServer
}

// New registers every tool and template resource.
func New(env *actions.Env) (*Server, error) {
	s := &Server{env: env}
	s.mcp = server.NewMCPServer(
		env.Config.MCP.ServerName,
		env.Config.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
		server.WithHooks(s.hooks()),
	)

	for _, t := range s.tools() {
		s.mcp.AddTool(t.tool, s.traced(t.tool.Name, t.handler))
	}
	if err := s.addResources(); err != nil {
		return nil, err
	}
	logging.MCP("server %s %s ready", env.Config.MCP.ServerName, env.Config.Version)
	return s, nil
}

// hooks answers initialize with the configured protocol version whatever
// the client asks for.
func (s *Server) hooks() *server.Hooks {
	h := &server.Hooks{}
	pinned := s.env.Config.MCP.ProtocolVersion
	h.AddAfterInitialize(func(_ context.Context, _ any, req *mcp.InitializeRequest, res *mcp.InitializeResult) {
		if pinned == "" || res == nil {
			return
		}
		if req.Params.ProtocolVersion != pinned {
			logging.MCPDebug("client asked for protocol %s, answering %s", req.Params.ProtocolVersion, pinned)
		}
		res.ProtocolVersion = pinned
	})
	return h
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// HandleMessage processes one JSON-RPC message.
func (s *Server) HandleMessage(ctx context.Context, raw json.RawMessage) mcp.JSONRPCMessage {
	return s.mcp.HandleMessage(ctx, raw)
}

// Serve reads JSON-RPC from in and writes responses to out until ctx ends
// or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(logWriter{}, "", 0))
	return stdio.Listen(ctx, in, out)
}

// logWriter forwards mcp-go's error log to the MCP category.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	logging.Get(logging.CategoryMCP).Error("%s", p)
	return len(p), nil
}

func (s *Server) traced(name string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		timer := logging.StartTimer(logging.CategoryMCP, "tool "+name)
		defer timer.Stop()
		logging.MCPDebug("call %s args=%v", name, req.GetArguments())
		return h(ctx, req)
	}
}

func (s *Server) addResources() error {
	ts, err := templates.List(templates.Filter{})
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	for _, t := range ts {
		res := mcp.NewResource(t.URI, t.Name,
			mcp.WithResourceDescription(t.Description),
			mcp.WithMIMEType(TemplateMIMEType),
		)
		s.mcp.AddResource(res, readTemplate)
	}
	return nil
}

func readTemplate(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	t, err := templates.Get(req.Params.URI)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: t.URI, MIMEType: TemplateMIMEType, Text: t.Content},
	}, nil
}
