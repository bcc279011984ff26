package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the optional YAML config file. Pointer fields distinguish
// "absent" from "set to the zero value".
type fileConfig struct {
	Topic       *string `yaml:"topic"`
	Verbose     *bool   `yaml:"verbose"`
	CallTimeout *string `yaml:"call_timeout"`

	OpenAI struct {
		BaseURL *string `yaml:"base_url"`
		Model   *string `yaml:"model"`
	} `yaml:"openai"`

	GitHub struct {
		Owner       *string `yaml:"owner"`
		Repo        *string `yaml:"repo"`
		IssueNumber *int    `yaml:"issue_number"`
	} `yaml:"github"`

	MCP struct {
		Command *string  `yaml:"command"`
		Args    []string `yaml:"args"`
	} `yaml:"mcp"`
}

// LoadFile overlays the YAML file at path on cfg. Credentials are
// intentionally not read from the file; they come from the environment.
func LoadFile(cfg Config, path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	return decodeFile(cfg, bytes.NewReader(content))
}

func decodeFile(cfg Config, r io.Reader) (Config, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	if fc.Topic != nil {
		cfg.Topic = *fc.Topic
	}
	if fc.Verbose != nil {
		cfg.Verbose = *fc.Verbose
	}
	if fc.CallTimeout != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*fc.CallTimeout))
		if err != nil {
			return cfg, &Error{Problems: []string{fmt.Sprintf("call_timeout: %v", err)}}
		}
		cfg.CallTimeout = d
	}
	if fc.OpenAI.BaseURL != nil {
		cfg.BaseURL = *fc.OpenAI.BaseURL
	}
	if fc.OpenAI.Model != nil {
		cfg.Model = *fc.OpenAI.Model
	}
	if fc.GitHub.Owner != nil {
		cfg.Owner = *fc.GitHub.Owner
	}
	if fc.GitHub.Repo != nil {
		cfg.Repo = *fc.GitHub.Repo
	}
	if fc.GitHub.IssueNumber != nil {
		cfg.IssueNumber = *fc.GitHub.IssueNumber
	}
	if fc.MCP.Command != nil {
		cfg.MCPCommand = *fc.MCP.Command
	}
	if fc.MCP.Args != nil {
		cfg.MCPArgs = append([]string(nil), fc.MCP.Args...)
	}
	return cfg, nil
}
