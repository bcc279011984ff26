// Package main provides the limerickbot CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/minhyannv/limerick-bot-go/pkg/bot"
	configpkg "github.com/minhyannv/limerick-bot-go/pkg/config"
	loggerpkg "github.com/minhyannv/limerick-bot-go/pkg/logger"
)

// main is the program entry point.
func main() {
	_ = godotenv.Load()

	config, err := parseCLIConfig(os.Args[1:], os.LookupEnv, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger := loggerpkg.NewWriterLogger(os.Stderr)
	app, err := bot.New(config, bot.WithLogger(appLogger))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if _, err := app.Run(ctx, os.Stdout); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// parseCLIConfig layers defaults, the optional YAML file, the environment and
// flags, in that order.
func parseCLIConfig(args []string, lookup configpkg.LookupFunc, usage io.Writer) (configpkg.Config, error) {
	defaults := configpkg.DefaultConfig()

	fs := flag.NewFlagSet("limerickbot", flag.ContinueOnError)
	fs.SetOutput(usage)
	var mcpArgs stringSliceFlag
	configPath := fs.String("config", "", "YAML config file (credentials are read from the environment only)")
	topic := fs.String("topic", "", "Limerick topic (default "+configpkg.DefaultTopic+")")
	model := fs.String("model", "", "Completion model (default "+configpkg.DefaultModel+")")
	verbose := fs.Bool("verbose", false, "Verbose logging")
	mcpCmd := fs.String("mcp_cmd", "", "Tool server command (overrides GITHUB_MCP_CMD)")
	fs.Var(&mcpArgs, "mcp_arg", "Tool server argument. Repeat this flag for multiple arguments; replaces GITHUB_MCP_ARGS")
	callTimeout := fs.Duration("call_timeout", 0, "Timeout for each external call (default 60s)")
	skipComment := fs.Bool("skip_comment", false, "Only generate; do not post the comment")
	if err := fs.Parse(args); err != nil {
		return configpkg.Config{}, err
	}
	if fs.NArg() > 0 {
		return configpkg.Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg := defaults
	var err error
	if *configPath != "" {
		if cfg, err = configpkg.LoadFile(cfg, *configPath); err != nil {
			return configpkg.Config{}, err
		}
	}
	if cfg, err = configpkg.ApplyEnv(cfg, lookup); err != nil {
		return configpkg.Config{}, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["topic"] {
		cfg.Topic = *topic
	}
	if set["model"] {
		cfg.Model = *model
	}
	if set["verbose"] {
		cfg.Verbose = *verbose
	}
	if set["mcp_cmd"] {
		cfg.MCPCommand = *mcpCmd
	}
	if set["mcp_arg"] {
		cfg.MCPArgs = mcpArgs.values()
	}
	if set["call_timeout"] {
		cfg.CallTimeout = *callTimeout
	}
	if set["skip_comment"] {
		cfg.SkipComment = *skipComment
	}
	return configpkg.Normalize(cfg), nil
}

// stringSliceFlag supports repeatable -mcp_arg flags.
type stringSliceFlag []string

func (f *stringSliceFlag) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(*f, " ")
}

func (f *stringSliceFlag) Set(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("empty tool server argument")
	}
	*f = append(*f, value)
	return nil
}

func (f stringSliceFlag) values() []string {
	out := make([]string, len(f))
	copy(out, f)
	return out
}
