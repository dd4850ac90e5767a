package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"site-research-be/internal/bootstrap"
	"site-research-be/internal/config"
	"site-research-be/internal/pkg/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "agentctl",
	Short:         "Operate the website research agent",
	Long:          "Ingest the organization's website, ask the agent questions and tail its session events.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(ingestCmd, askCmd, eventsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openCore loads configuration and builds the agent with a file-only logger
// so the terminal shows command output only.
func openCore() (*bootstrap.Core, func(), error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewIsolatedLogger(cfg.App.LogFilePath)
	core, err := bootstrap.NewCore(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return core, func() {
		_ = core.Close()
		_ = log.Sync()
	}, nil
}
