package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/codefionn/wsbridge/internal/bridge"
	"github.com/codefionn/wsbridge/internal/config"
	"github.com/codefionn/wsbridge/internal/fs"
	"github.com/codefionn/wsbridge/internal/logger"
	"github.com/codefionn/wsbridge/internal/sandbox"
)

type options struct {
	configPath  string
	workspace   string
	host        string
	ports       string
	logLevel    string
	logPath     string
	showVersion bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	opts, parseErr := parseArgs(os.Args[1:])
	if parseErr != nil {
		if errors.Is(parseErr, flag.ErrHelp) {
			return nil
		}
		return parseErr
	}

	if opts.showVersion {
		fmt.Printf("%s %s\n", bridge.ServerName, bridge.ServerVersion)
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	root, err := sandbox.NewRoot(cfg.WorkspaceRoot)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	logger.Info("workspace root: %s", root.Path())

	workspaceFS := fs.NewWorkspaceFS(root,
		time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.MaxCacheEntries)
	defer workspaceFS.Close()

	server := bridge.NewServer(cfg, bridge.NewHandler(bridge.DefaultIdentity(), workspaceFS))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return server.Stop()
}

func parseArgs(args []string) (*options, error) {
	fs := flag.NewFlagSet("wsbridge", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", defaultConfigPath(), "Path to the JSON config file")
	fs.StringVar(&opts.workspace, "workspace", "", "Workspace root directory (overrides config)")
	fs.StringVar(&opts.host, "host", "", "Bind address (overrides config)")
	fs.StringVar(&opts.ports, "ports", "", "Comma-separated candidate port list (overrides config)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error, none")
	fs.StringVar(&opts.logPath, "log-path", "", "Log file path, or \"stderr\"")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintln(fs.Output(), "Serves sandboxed, read-only workspace file access to IDE clients")
		fmt.Fprintln(fs.Output(), "over a length-prefixed JSON protocol on loopback.")
		fmt.Fprintln(fs.Output(), "\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if len(fs.Args()) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func applyFlags(cfg *config.Config, opts *options) {
	if opts.workspace != "" {
		cfg.WorkspaceRoot = opts.workspace
	}
	if opts.host != "" {
		cfg.Host = opts.host
	}
	if opts.ports != "" {
		if ports, err := config.ParsePorts(opts.ports); err == nil {
			cfg.Ports = ports
		} else {
			fmt.Fprintf(os.Stderr, "Warning: ignoring invalid -ports value: %v\n", err)
		}
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logPath != "" {
		cfg.LogPath = opts.logPath
	}
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "wsbridge", "config.json")
	}
	return "wsbridge.json"
}
