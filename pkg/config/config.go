package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultModel       = "o4-mini"
	DefaultTopic       = "AI Hallucinations"
	DefaultOwner       = "DevBotJr"
	DefaultRepo        = "mcptestrepo"
	DefaultIssueNumber = 1
	DefaultMCPCommand  = "./github-mcp-server"
	DefaultMCPArgs     = "stdio --enable-command-logging --log-file mcp.log"
	DefaultCallTimeout = 60 * time.Second
)

// Config holds all runtime configuration. It is built once at startup and
// passed by value afterwards.
type Config struct {
	Topic       string
	Verbose     bool
	CallTimeout time.Duration
	SkipComment bool

	APIKey  string
	BaseURL string
	Model   string

	GitHubToken string
	Owner       string
	Repo        string
	IssueNumber int

	MCPCommand string
	MCPArgs    []string
}

// Error reports every missing or invalid setting found while building a Config.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *Error) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *Error) orNil() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}

// DefaultConfig returns a baseline configuration without side effects.
func DefaultConfig() Config {
	args, _ := ParseArgs(DefaultMCPArgs)
	return Config{
		Topic:       DefaultTopic,
		CallTimeout: DefaultCallTimeout,
		Model:       DefaultModel,
		Owner:       DefaultOwner,
		Repo:        DefaultRepo,
		IssueNumber: DefaultIssueNumber,
		MCPCommand:  DefaultMCPCommand,
		MCPArgs:     args,
	}
}

// BridgeEnabled reports whether the comment step should run.
func (c Config) BridgeEnabled() bool {
	return !c.SkipComment && c.MCPCommand != ""
}

// Normalize sanitizes configuration values and applies defaults.
func Normalize(cfg Config) Config {
	cfg.Topic = strings.TrimSpace(cfg.Topic)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.GitHubToken = strings.TrimSpace(cfg.GitHubToken)
	cfg.Owner = strings.TrimSpace(cfg.Owner)
	cfg.Repo = strings.TrimSpace(cfg.Repo)
	cfg.MCPCommand = strings.TrimSpace(cfg.MCPCommand)

	cfg.MCPArgs = append([]string(nil), cfg.MCPArgs...)

	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return cfg
}

// Validate checks that required credentials are present and that the comment
// target is usable when the bridge is enabled.
func Validate(cfg Config) error {
	problems := &Error{}
	if cfg.APIKey == "" {
		problems.add("OPENAI_API_KEY is not set")
	}
	if cfg.GitHubToken == "" {
		problems.add("LIMERICKBOT_GITHUB_TOKEN is not set")
	}
	if cfg.BridgeEnabled() {
		if cfg.Owner == "" {
			problems.add("GITHUB_OWNER is empty")
		}
		if cfg.Repo == "" {
			problems.add("GITHUB_REPO is empty")
		}
		if cfg.IssueNumber <= 0 {
			problems.add("GITHUB_ISSUE_NUMBER must be a positive integer, got %d", cfg.IssueNumber)
		}
	}
	return problems.orNil()
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables on cfg. An explicitly empty
// GITHUB_MCP_CMD disables the bridge.
func ApplyEnv(cfg Config, lookup LookupFunc) (Config, error) {
	problems := &Error{}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("OPENAI_API_KEY", &cfg.APIKey)
	str("OPENAI_BASE_URL", &cfg.BaseURL)
	str("OPENAI_MODEL", &cfg.Model)
	str("GITHUB_TOKEN", &cfg.GitHubToken)
	str("LIMERICKBOT_GITHUB_TOKEN", &cfg.GitHubToken)
	str("GITHUB_OWNER", &cfg.Owner)
	str("GITHUB_REPO", &cfg.Repo)
	str("LIMERICKBOT_TOPIC", &cfg.Topic)

	if v, ok := lookup("GITHUB_ISSUE_NUMBER"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			problems.add("GITHUB_ISSUE_NUMBER %q is not an integer", v)
		} else {
			cfg.IssueNumber = n
		}
	}
	if v, ok := lookup("GITHUB_MCP_CMD"); ok {
		cfg.MCPCommand = strings.TrimSpace(v)
	}
	if v, ok := lookup("GITHUB_MCP_ARGS"); ok {
		args, err := ParseArgs(v)
		if err != nil {
			problems.add("GITHUB_MCP_ARGS: %v", err)
		} else {
			cfg.MCPArgs = args
		}
	}
	return cfg, problems.orNil()
}
