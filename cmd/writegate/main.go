// Package main provides the writegate binary entry point.
// Writegate is a pre-write policy gate: invoked as an agent hook it reads
// a proposed file mutation from stdin and answers with a decision on
// stdout, and its subcommands manage approvals, policy and the audit log.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/writegate/hook"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "writegate"
)

// Global flags available to all commands.
var (
	rootPath string
	logLevel string
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "writegate",
		Short: "Policy gate for agent file writes",
		Long: `Writegate evaluates proposed file mutations against a project policy
before they land. Run with no arguments it acts as a pre-write hook:
it reads one tool event as JSON on stdin, evaluates the write, and
prints a decision as JSON on stdout. Logs go to stderr.

Policy lives in .writegate/policy.yaml (seed one with 'writegate init';
without it the packaged default applies). Blocked writes can be
approved once with 'writegate approve', and every decision that blocks,
warns or consumes an approval is recorded in .writegate/audit.jsonl.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook()
		},
	}

	cmd.PersistentFlags().StringVar(&rootPath, "root", ".", "Project root the policy and state live under")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		approveCmd(),
		overridesCmd(),
		auditCmd(),
		rulesCmd(),
		checkCmd(),
		initCmd(),
	)

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// runHook reads one hook event from stdin and prints the decision. The
// hook protocol carries the outcome in the JSON body, so the process
// exits zero on blocked writes too.
func runHook() error {
	logger := setupLogger()

	root, err := resolveRoot()
	if err != nil {
		return err
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		// An unreadable event resolves the same way as an unparseable one.
		logger.Warn("Failed to read hook input", slog.String("error", err.Error()))
		raw = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decision := hook.NewEngine(root, logger).Evaluate(ctx, raw)

	if err := json.NewEncoder(os.Stdout).Encode(decision); err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	return nil
}

// setupLogger configures slog on stderr so stdout stays pure JSON in
// hook mode.
func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func resolveRoot() (string, error) {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat project root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}
