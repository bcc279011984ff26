// Package bot runs the two-step limerick pipeline: generate the text, then
// forward it as an issue comment through the tool-server bridge.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	configpkg "github.com/minhyannv/limerick-bot-go/pkg/config"
	"github.com/minhyannv/limerick-bot-go/pkg/generator"
	loggerpkg "github.com/minhyannv/limerick-bot-go/pkg/logger"
	"github.com/minhyannv/limerick-bot-go/pkg/prompt"
	"github.com/minhyannv/limerick-bot-go/pkg/toolbridge"
)

const separatorWidth = 60

// Bot holds the validated configuration and the two pipeline steps.
type Bot struct {
	config    configpkg.Config
	generator TextGenerator
	poster    CommentPoster

	logger  loggerpkg.Logger
	verbose bool
}

// Result is what one run produced.
type Result struct {
	Limerick string
	Posted   bool
	Reply    json.RawMessage
}

// New validates cfg and wires the default generator and bridge unless
// replaced through options.
func New(cfg configpkg.Config, opts ...Option) (*Bot, error) {
	cfg = configpkg.Normalize(cfg)
	deps := botDeps{logger: loggerpkg.NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}
	if deps.logger == nil {
		deps.logger = loggerpkg.NopLogger{}
	}

	if err := configpkg.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	loggerpkg.Debug(cfg.Verbose, deps.logger, "bot init", map[string]any{
		"model":        cfg.Model,
		"base_url":     cfg.BaseURL,
		"topic":        cfg.Topic,
		"target":       fmt.Sprintf("%s/%s#%d", cfg.Owner, cfg.Repo, cfg.IssueNumber),
		"mcp_command":  cfg.MCPCommand,
		"mcp_args":     cfg.MCPArgs,
		"call_timeout": cfg.CallTimeout.String(),
		"bridge":       cfg.BridgeEnabled(),
	})

	if deps.generator == nil {
		deps.generator = generator.New(cfg, generator.WithLogger(loggerpkg.Named(deps.logger, "generator")))
	}
	if deps.poster == nil {
		deps.poster = bridgePoster{config: cfg, logger: loggerpkg.Named(deps.logger, "toolbridge")}
	}

	return &Bot{
		config:    cfg,
		generator: deps.generator,
		poster:    deps.poster,
		logger:    deps.logger,
		verbose:   cfg.Verbose,
	}, nil
}

// Run generates the limerick, prints it to out and, when the bridge is
// enabled, posts it and prints the tool server's reply. Every error is fatal
// and names the failing stage.
func (b *Bot) Run(ctx context.Context, out io.Writer) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}

	genCtx, cancel := context.WithTimeout(ctx, b.config.CallTimeout)
	text, err := b.generator.Generate(genCtx, prompt.Limerick(b.config.Topic))
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}
	result := Result{Limerick: text}

	_, _ = fmt.Fprint(out, "Generated limerick:\n\n")
	_, _ = fmt.Fprintln(out, text)
	_, _ = fmt.Fprintf(out, "\n%s\n\n", strings.Repeat("─", separatorWidth))

	if !b.config.BridgeEnabled() {
		loggerpkg.Info(b.logger, "comment step skipped", map[string]any{"mcp_command": b.config.MCPCommand})
		return result, nil
	}

	reply, err := b.poster.PostComment(ctx, text)
	if err != nil {
		return result, fmt.Errorf("post comment: %w", err)
	}
	result.Posted = true
	result.Reply = reply

	_, _ = fmt.Fprintf(out, "✅ Comment posted via MCP: %s\n", reply)
	b.reportReply(reply, out)
	return result, nil
}

// reportReply surfaces tool-level failures the server reports inside an
// otherwise well-formed reply. The reply shape is not required.
func (b *Bot) reportReply(reply json.RawMessage, out io.Writer) {
	resp, err := toolbridge.DecodeResponse(reply)
	if err != nil {
		loggerpkg.Debug(b.verbose, b.logger, "reply is not a JSON-RPC envelope", map[string]any{"error": err.Error()})
		return
	}
	if resp.Error != nil {
		loggerpkg.Warn(b.logger, "tool server returned an error", map[string]any{
			"code":    resp.Error.Code,
			"message": resp.Error.Message,
		})
		_, _ = fmt.Fprintf(out, "⚠️  Tool server error: %s\n", resp.Error.Message)
		return
	}
	if tr, ok := resp.ToolResult(); ok && tr.IsError {
		loggerpkg.Warn(b.logger, "tool reported a failure", map[string]any{"text": tr.Text()})
		_, _ = fmt.Fprintf(out, "⚠️  Tool failed: %s\n", tr.Text())
	}
}

// bridgePoster posts comments through a freshly launched tool server.
type bridgePoster struct {
	config configpkg.Config
	logger loggerpkg.Logger
}

func (p bridgePoster) PostComment(ctx context.Context, body string) (json.RawMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("comment body is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, p.config.CallTimeout)
	defer cancel()

	loggerpkg.Info(p.logger, "posting comment", map[string]any{
		"owner":        p.config.Owner,
		"repo":         p.config.Repo,
		"issue_number": p.config.IssueNumber,
	})
	return toolbridge.RunTool(ctx, p.config.MCPCommand, p.config.MCPArgs,
		toolbridge.ToolAddIssueComment,
		toolbridge.CommentArguments{
			Owner:       p.config.Owner,
			Repo:        p.config.Repo,
			IssueNumber: p.config.IssueNumber,
			Body:        body,
		},
		toolbridge.WithEnv("GITHUB_PERSONAL_ACCESS_TOKEN="+p.config.GitHubToken),
		toolbridge.WithLogger(p.logger),
		toolbridge.WithVerbose(p.config.Verbose),
	)
}
