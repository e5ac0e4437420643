// Package mcp exposes the assistant as Model Context Protocol tools so
// agents can run commands, describe camera frames and read history.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/teslashibe/suradas/pkg/assistant"
	"github.com/teslashibe/suradas/pkg/command"
	"github.com/teslashibe/suradas/pkg/history"
)

// DefaultSession is used when a tool call names no session.
const DefaultSession = "mcp"

// Server wraps the assistant as an MCP server.
type Server struct {
	assistant *assistant.Assistant
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates the server and registers its tools.
func NewServer(a *assistant.Assistant, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		assistant: a,
		mcpServer: server.NewMCPServer("suradas", strings.TrimSpace(version)),
		logger:    logger.With("component", "mcp.server"),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves JSON-RPC on in/out until the client disconnects or
// ctx is cancelled. Callers pass the real stdout here and point os.Stdout
// elsewhere so console output cannot corrupt the stream.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(log.New(os.Stderr, "mcp: ", log.LstdFlags))
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ServeSSE serves over HTTP server-sent events until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("mcp: shutdown: %w", err)
		}
		return nil
	}
}

type commandArgs struct {
	Text    string `mapstructure:"text"`
	Session string `mapstructure:"session"`
}

type frameArgs struct {
	Kind    string `mapstructure:"kind"`
	Session string `mapstructure:"session"`
}

type translateArgs struct {
	Text     string `mapstructure:"text"`
	Language string `mapstructure:"language"`
	Session  string `mapstructure:"session"`
}

type searchArgs struct {
	Query   string `mapstructure:"query"`
	Session string `mapstructure:"session"`
}

type historyArgs struct {
	Session string `mapstructure:"session"`
	Limit   int    `mapstructure:"limit"`
}

type sessionArgs struct {
	Session string `mapstructure:"session"`
}

func sessionOpt() mcp.ToolOption {
	return mcp.WithString("session", mcp.Description("Session id (defaults to \""+DefaultSession+"\")"))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("run_command",
		mcp.WithDescription("Run a free-text command such as \"where am i\", \"search for ...\" or \"translate to French\". Vision commands (\"detect object\", \"detect currency\") describe the latest camera frame."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The command text")),
		sessionOpt(),
	), s.handleRunCommand)

	s.mcpServer.AddTool(mcp.NewTool("describe_frame",
		mcp.WithDescription("Capture the latest camera frame and describe it."),
		mcp.WithString("kind", mcp.Required(), mcp.Enum(string(command.KindObject), string(command.KindCurrency)),
			mcp.Description("object: identify the main object; currency: identify banknotes and coins")),
		sessionOpt(),
	), s.handleDescribeFrame)

	s.mcpServer.AddTool(mcp.NewTool("translate",
		mcp.WithDescription("Translate text into another language."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to translate")),
		mcp.WithString("language", mcp.Required(), mcp.Description("Target language, e.g. French")),
		sessionOpt(),
	), s.handleTranslate)

	s.mcpServer.AddTool(mcp.NewTool("describe_location",
		mcp.WithDescription("Describe the device's approximate location from its public IP."),
		sessionOpt(),
	), s.handleLocation)

	s.mcpServer.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Answer a question using web search grounding."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		sessionOpt(),
	), s.handleSearch)

	s.mcpServer.AddTool(mcp.NewTool("history",
		mcp.WithDescription("List the commands issued in a session, oldest first."),
		sessionOpt(),
		mcp.WithNumber("limit", mcp.Description("Return at most this many recent commands")),
	), s.handleHistory)
}

// decode copies tool arguments into out.
func decode(request mcp.CallToolRequest, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(request.GetArguments())
}

func session(id string) string {
	if id == "" {
		return DefaultSession
	}
	return id
}

// replyResult converts a reply into a tool result; failed replies are
// tool errors so the agent sees them as such.
func replyResult(r assistant.Reply) *mcp.CallToolResult {
	text := r.Text
	if r.Notice != "" && r.Notice != r.Text {
		text = r.Notice + "\n\n" + text
	}
	if r.Labels != "" {
		text += "\n\nDetected: " + r.Labels
	}
	for _, src := range r.Sources {
		text += fmt.Sprintf("\n- %s %s", src.Title, src.URI)
	}
	if r.Failed() {
		return mcp.NewToolResultError(text)
	}
	return mcp.NewToolResultText(text)
}

func invalid(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
}

func (s *Server) handleRunCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args commandArgs
	if err := decode(request, &args); err != nil {
		return invalid(err)
	}
	if strings.TrimSpace(args.Text) == "" {
		return mcp.NewToolResultError(assistant.MsgEmptyCommand), nil
	}
	id := session(args.Session)
	ctx = assistant.WithSession(ctx, id)
	r := s.assistant.Submit(ctx, id, args.Text, history.SourceMCP)
	if r.NeedsFrame {
		// Agents have no capture button, so describe the frame right away.
		r = s.assistant.Capture(ctx, r.Command)
	}
	return replyResult(r), nil
}

func (s *Server) handleDescribeFrame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args frameArgs
	if err := decode(request, &args); err != nil {
		return invalid(err)
	}
	kind := command.ParseKind(args.Kind)
	if !kind.NeedsFrame() {
		return mcp.NewToolResultError("kind must be object or currency"), nil
	}
	r := s.assistant.Capture(assistant.WithSession(ctx, session(args.Session)), kind)
	return replyResult(r), nil
}

func (s *Server) handleTranslate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args translateArgs
	if err := decode(request, &args); err != nil {
		return invalid(err)
	}
	if strings.TrimSpace(args.Language) == "" {
		return mcp.NewToolResultError(command.MsgMissingLanguage), nil
	}
	r := s.assistant.Translate(assistant.WithSession(ctx, session(args.Session)), args.Text, args.Language)
	return replyResult(r), nil
}

func (s *Server) handleLocation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args sessionArgs
	if err := decode(request, &args); err != nil {
		return invalid(err)
	}
	return replyResult(s.assistant.Locate(assistant.WithSession(ctx, session(args.Session)))), nil
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args searchArgs
	if err := decode(request, &args); err != nil {
		return invalid(err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return mcp.NewToolResultError(command.MsgMissingQuery), nil
	}
	return replyResult(s.assistant.Search(assistant.WithSession(ctx, session(args.Session)), args.Query)), nil
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args historyArgs
	if err := decode(request, &args); err != nil {
		return invalid(err)
	}
	entries, err := s.assistant.History(ctx, session(args.Session))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history failed: %v", err)), nil
	}
	if args.Limit > 0 && len(entries) > args.Limit {
		entries = entries[len(entries)-args.Limit:]
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
