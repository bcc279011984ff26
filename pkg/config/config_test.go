package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultConfigMatchesOriginalTarget(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Owner != "DevBotJr" || cfg.Repo != "mcptestrepo" || cfg.IssueNumber != 1 {
		t.Fatalf("unexpected default target: %s/%s#%d", cfg.Owner, cfg.Repo, cfg.IssueNumber)
	}
	want := []string{"stdio", "--enable-command-logging", "--log-file", "mcp.log"}
	if !reflect.DeepEqual(cfg.MCPArgs, want) {
		t.Fatalf("expected default args %v, got %v", want, cfg.MCPArgs)
	}
	if !cfg.BridgeEnabled() {
		t.Fatal("expected bridge to be enabled by default")
	}
}

func TestApplyEnvOverridesDefaults(t *testing.T) {
	cfg, err := ApplyEnv(DefaultConfig(), envMap(map[string]string{
		"OPENAI_API_KEY":           " sk-test ",
		"OPENAI_MODEL":             "gpt-4o-mini",
		"LIMERICKBOT_GITHUB_TOKEN": "ghp_primary",
		"GITHUB_TOKEN":             "ghp_fallback",
		"GITHUB_OWNER":             "acme",
		"GITHUB_REPO":              "widgets",
		"GITHUB_ISSUE_NUMBER":      "42",
		"GITHUB_MCP_CMD":           "/usr/local/bin/github-mcp-server",
		"GITHUB_MCP_ARGS":          `stdio --log-file "my log.txt"`,
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.APIKey != "sk-test" {
		t.Fatalf("expected trimmed api key, got %q", cfg.APIKey)
	}
	if cfg.GitHubToken != "ghp_primary" {
		t.Fatalf("expected LIMERICKBOT_GITHUB_TOKEN to win, got %q", cfg.GitHubToken)
	}
	if cfg.Owner != "acme" || cfg.Repo != "widgets" || cfg.IssueNumber != 42 {
		t.Fatalf("unexpected target: %s/%s#%d", cfg.Owner, cfg.Repo, cfg.IssueNumber)
	}
	want := []string{"stdio", "--log-file", "my log.txt"}
	if !reflect.DeepEqual(cfg.MCPArgs, want) {
		t.Fatalf("expected args %v, got %v", want, cfg.MCPArgs)
	}
}

func TestApplyEnvGitHubTokenFallback(t *testing.T) {
	cfg, err := ApplyEnv(DefaultConfig(), envMap(map[string]string{"GITHUB_TOKEN": "ghp_fallback"}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.GitHubToken != "ghp_fallback" {
		t.Fatalf("expected fallback token, got %q", cfg.GitHubToken)
	}
}

func TestApplyEnvEmptyCommandDisablesBridge(t *testing.T) {
	cfg, err := ApplyEnv(DefaultConfig(), envMap(map[string]string{"GITHUB_MCP_CMD": ""}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.BridgeEnabled() {
		t.Fatal("expected bridge to be disabled by an empty GITHUB_MCP_CMD")
	}
}

func TestApplyEnvRejectsBadIssueNumber(t *testing.T) {
	_, err := ApplyEnv(DefaultConfig(), envMap(map[string]string{"GITHUB_ISSUE_NUMBER": "one"}))
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if !strings.Contains(cfgErr.Error(), "GITHUB_ISSUE_NUMBER") {
		t.Fatalf("expected issue number problem, got %q", cfgErr.Error())
	}
}

func TestValidateReportsAllMissingCredentials(t *testing.T) {
	err := Validate(Normalize(DefaultConfig()))
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if len(cfgErr.Problems) != 2 {
		t.Fatalf("expected 2 problems, got %v", cfgErr.Problems)
	}
}

func TestValidateSkipsTargetWhenBridgeDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "sk"
	cfg.GitHubToken = "ghp"
	cfg.Owner = ""
	cfg.IssueNumber = 0
	cfg.SkipComment = true
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.SkipComment = false
	if err := Validate(cfg); err == nil {
		t.Fatal("expected invalid target to be reported when bridge is enabled")
	}
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	cfg := Normalize(Config{Topic: "  ", Model: "", CallTimeout: -1, Owner: " acme "})
	if cfg.Topic != DefaultTopic || cfg.Model != DefaultModel || cfg.CallTimeout != DefaultCallTimeout {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Owner != "acme" {
		t.Fatalf("expected trimmed owner, got %q", cfg.Owner)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limerickbot.yaml")
	content := `topic: Gophers
call_timeout: 15s
openai:
  model: gpt-4o
github:
  owner: acme
  repo: widgets
  issue_number: 9
mcp:
  command: github-mcp-server
  args: [stdio, --read-only]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(DefaultConfig(), path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Topic != "Gophers" || cfg.Model != "gpt-4o" || cfg.CallTimeout != 15*time.Second {
		t.Fatalf("unexpected values: %+v", cfg)
	}
	if cfg.Owner != "acme" || cfg.Repo != "widgets" || cfg.IssueNumber != 9 {
		t.Fatalf("unexpected target: %s/%s#%d", cfg.Owner, cfg.Repo, cfg.IssueNumber)
	}
	if !reflect.DeepEqual(cfg.MCPArgs, []string{"stdio", "--read-only"}) {
		t.Fatalf("unexpected args: %v", cfg.MCPArgs)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("api_key: sk-should-not-be-here\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(DefaultConfig(), path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestLoadFileEmptyKeepsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadFile(DefaultConfig(), path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("expected defaults to be untouched, got %+v", cfg)
	}
}
