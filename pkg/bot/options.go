package bot

import (
	"context"
	"encoding/json"

	loggerpkg "github.com/minhyannv/limerick-bot-go/pkg/logger"
)

// TextGenerator produces the limerick text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CommentPoster forwards text as an issue comment and returns the tool
// server's raw reply.
type CommentPoster interface {
	PostComment(ctx context.Context, body string) (json.RawMessage, error)
}

// Option configures optional runtime dependencies for Bot.
type Option func(*botDeps)

type botDeps struct {
	logger    loggerpkg.Logger
	generator TextGenerator
	poster    CommentPoster
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(d *botDeps) {
		d.logger = l
	}
}

// WithGenerator replaces the completion-API generator.
func WithGenerator(g TextGenerator) Option {
	return func(d *botDeps) {
		d.generator = g
	}
}

// WithCommentPoster replaces the tool-server bridge.
func WithCommentPoster(p CommentPoster) Option {
	return func(d *botDeps) {
		d.poster = p
	}
}
