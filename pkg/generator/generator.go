// Package generator produces the limerick text with a single chat completion.
package generator

import (
	"context"
	"errors"
	"strings"

	configpkg "github.com/minhyannv/limerick-bot-go/pkg/config"
	loggerpkg "github.com/minhyannv/limerick-bot-go/pkg/logger"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Error is returned for every generation failure. Failures are never retried.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Generator issues one completion request per Generate call.
type Generator struct {
	client  openai.Client
	model   string
	logger  loggerpkg.Logger
	verbose bool
}

// Option configures optional Generator dependencies.
type Option func(*Generator)

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New builds a Generator from cfg.
func New(cfg configpkg.Config, opts ...Option) *Generator {
	g := &Generator{
		client:  newOpenAIClient(cfg),
		model:   cfg.Model,
		logger:  loggerpkg.NopLogger{},
		verbose: cfg.Verbose,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func newOpenAIClient(cfg configpkg.Config) openai.Client {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return openai.NewClient(opts...)
}

// Generate sends prompt as a single user message and returns the first
// choice's content, trimmed.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", &Error{Reason: "prompt is empty"}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loggerpkg.Debug(g.verbose, g.logger, "sending completion request", map[string]any{
		"model":        g.model,
		"prompt_bytes": len(prompt),
	})
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", &Error{Reason: "completion request failed", Err: err}
	}
	if len(completion.Choices) == 0 {
		return "", &Error{Reason: "completion returned no choices"}
	}

	choice := completion.Choices[0]
	loggerpkg.Debug(g.verbose, g.logger, "completion received", map[string]any{
		"choices":       len(completion.Choices),
		"finish_reason": choice.FinishReason,
	})
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		if choice.Message.Refusal != "" {
			return "", &Error{Reason: "completion refused", Err: errors.New(choice.Message.Refusal)}
		}
		return "", &Error{Reason: "completion content is empty"}
	}
	return text, nil
}
