// Package mcpserver exposes the SkillPath tools to Model Context Protocol
// clients. One MCP connection is one session.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/HerbHall/skillpath/internal/session"
	"github.com/HerbHall/skillpath/internal/tools"
)

// Transport is the session transport name for MCP sessions.
const Transport = "mcp"

// BatchHandler runs one batch of tool calls.
type BatchHandler interface {
	HandleBatch(ctx context.Context, b tools.Batch) ([]tools.Response, error)
}

// Server serves the four SkillPath tools over MCP.
type Server struct {
	server     *mcp.Server
	sessions   *session.Manager
	dispatcher BatchHandler
	opener     tools.Opener
	logger     *zap.Logger

	sess *session.Session
}

// New creates an MCP server. opener may be nil, in which case accepted
// launches are only reported in the tool result.
func New(sessions *session.Manager, dispatcher BatchHandler, opener tools.Opener, logger *zap.Logger, version string) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "skillpath",
			Title:   "SkillPath learning assistant",
			Version: version,
		}, nil),
		sessions:   sessions,
		dispatcher: dispatcher,
		opener:     opener,
		logger:     logger,
	}
	for _, d := range tools.Declarations() {
		s.server.AddTool(&mcp.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: inputSchema(d),
		}, s.handler(d.Name))
	}
	return s
}

// Run opens a session and serves t until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	sess, err := s.sessions.Open(ctx, Transport)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	s.sess = sess
	defer s.sessions.Close(sess.ID, "mcp client disconnected")

	s.logger.Info("mcp session started", zap.String("session_id", sess.ID))
	err = s.server.Run(sess.Context(), t)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if s.sess == nil {
			return nil, errors.New("mcpserver: no active session")
		}

		var args json.RawMessage
		if req.Params != nil {
			args = req.Params.Arguments
		}
		responses, err := s.dispatcher.HandleBatch(ctx, tools.Batch{
			Session: s.sess,
			Calls:   []tools.Call{{ID: name, Name: name, Args: args}},
			Opener:  s.opener,
		})
		if err != nil {
			return nil, err
		}
		return toResult(responses[0].Response)
	}
}

func toResult(r tools.Result) (*mcp.CallToolResult, error) {
	if r.Error != "" {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: r.Error}},
		}, nil
	}
	data, err := json.Marshal(r.Output)
	if err != nil {
		return nil, fmt.Errorf("encode tool output: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

// inputSchema returns the declaration's parameters, or an empty object schema
// for tools without arguments.
func inputSchema(d tools.Declaration) map[string]any {
	if d.Parameters != nil {
		return d.Parameters
	}
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}
