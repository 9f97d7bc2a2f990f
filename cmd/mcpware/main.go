// ABOUTME: Entry point for the mcpware gateway CLI
// ABOUTME: Builds the cobra command tree; serve is the default command

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const defaultConfigFile = "config.json"

var (
	configFlag   string
	logLevelFlag string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcpware",
		Short: "MCP gateway that multiplexes backend servers behind one stdio connection",
		Long: "mcpware speaks MCP on stdin/stdout, starts every configured backend server as a\n" +
			"child process, and enforces a cross-backend data-flow policy on every tool call.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "config file (default $MCPWARE_CONFIG or ./"+defaultConfigFile+")")
	root.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the gateway on stdin/stdout", Args: cobra.NoArgs, RunE: runServe},
		newValidateCmd(),
		newHealthCmd(),
		newAuditCmd(),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath picks the config file.
// Priority: --config flag > MCPWARE_CONFIG env var > ./config.json
func resolveConfigPath() string {
	if configFlag != "" {
		return configFlag
	}
	if envPath := os.Getenv("MCPWARE_CONFIG"); envPath != "" {
		return envPath
	}
	return defaultConfigFile
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}
