// Package mcpserver exposes the assistant as Model Context Protocol tools so
// desktop clients can ask questions on behalf of one principal.
package mcpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"bizassist/internal/domain"
)

// Router answers one prompt.
type Router interface {
	Route(ctx context.Context, p domain.Principal, prompt string) domain.Envelope
}

type Config struct {
	Name      string
	Version   string
	Principal domain.Principal
	Router    Router
	History   domain.HistoryStore // optional; records answered prompts
	Sales     domain.SalesQuerier // optional; enables kpi_summary
	Now       func() time.Time
	Location  *time.Location
	Logger    *slog.Logger
}

// New builds an MCP server with the ask tool and, when sales data is
// available, the kpi_summary tool.
func New(cfg Config) *server.MCPServer {
	if cfg.Name == "" {
		cfg.Name = "bizassist"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	ask := NewAskTool(cfg.Router, cfg.Principal, cfg.History, cfg.Logger)
	s.AddTool(ask.Definition(), ask.Handle)

	if cfg.Sales != nil && !cfg.Principal.IsPatient() {
		kpi := NewKPISummaryTool(cfg.Sales, cfg.Principal, cfg.Now, cfg.Location)
		s.AddTool(kpi.Definition(), kpi.Handle)
	}
	return s
}

// Serve runs s over stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// AskTool handles the ask MCP tool.
type AskTool struct {
	router    Router
	principal domain.Principal
	history   domain.HistoryStore
	logger    *slog.Logger
}

func NewAskTool(router Router, p domain.Principal, history domain.HistoryStore, logger *slog.Logger) *AskTool {
	return &AskTool{router: router, principal: p, history: history, logger: logger}
}

// Definition returns the MCP tool definition for ask.
func (t *AskTool) Definition() mcp.Tool {
	return mcp.NewTool("ask",
		mcp.WithDescription(
			"Ask the business assistant a question. It answers from sales, task, appointment and FAQ data "+
				"when it can, schedules reminders with \"/remind \\\"<text>\\\" on <when>\", and otherwise asks the language model.",
		),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The question or command"),
		),
	)
}

// Handle routes the prompt and returns the whole answer as text. Streamed
// answers are collected before returning.
func (t *AskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt := strings.TrimSpace(req.GetString("prompt", ""))
	if prompt == "" {
		return mcp.NewToolResultError("'prompt' is required"), nil
	}

	var answer string
	switch env := t.router.Route(ctx, t.principal, prompt).(type) {
	case domain.Reply:
		answer = env.Text
	case domain.Failure:
		return mcp.NewToolResultError(env.Message), nil
	case domain.Stream:
		text, err := drain(env.Tokens)
		if err != nil {
			t.logger.Error("stream generation failed", "err", err)
			return mcp.NewToolResultError("Error during stream generation."), nil
		}
		answer = text
	default:
		return mcp.NewToolResultError("Empty response from assistant."), nil
	}

	if t.history != nil {
		if err := t.history.AppendExchange(context.WithoutCancel(ctx), t.principal.Scope, prompt, answer); err != nil {
			t.logger.Warn("failed to record conversation", "err", err)
		}
	}
	return mcp.NewToolResultText(answer), nil
}

func drain(tokens domain.TokenStream) (string, error) {
	defer tokens.Close()
	var sb strings.Builder
	for {
		fragment, err := tokens.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(fragment)
	}
}
