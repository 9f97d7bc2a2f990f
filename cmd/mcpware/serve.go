// ABOUTME: The serve command: load config, print the banner to stderr, run the gateway
// ABOUTME: stdout carries protocol traffic only

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/mcpware/internal/config"
	"github.com/2389/mcpware/internal/gateway"
)

const banner = `
  _ __ ___   ___ _ ____      ____ _ _ __ ___
 | '_ ' _ \ / __| '_ \ \ /\ / / _' | '__/ _ \
 | | | | | | (__| |_) \ V  V / (_| | | |  __/
 |_| |_| |_|\___| .__/ \_/\_/ \__,_|_|  \___|
                |_|
`

func runServe(cmd *cobra.Command, _ []string) error {
	configPath := resolveConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	printBanner(cfg, configPath)

	logger.Info("starting mcpware",
		"version", version,
		"config", configPath,
		"backends", len(cfg.Backends),
	)

	gw, err := gateway.New(cfg, logger, gateway.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	return gw.Run(cmd.Context(), os.Stdin, os.Stdout)
}

func printBanner(cfg *config.Config, configPath string) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	w := os.Stderr

	cyan.Fprint(w, banner)
	gray.Fprintf(w, "    version: %s\n\n", version)

	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Config:    %s\n", configPath)
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Backends:  %d\n", len(cfg.Backends))
	if cfg.Audit.Path != "" {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "Audit:     %s\n", cfg.Audit.Path)
	}
	if cfg.Admin.GRPCAddr != "" {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "Health:    %s\n", cfg.Admin.GRPCAddr)
	}
	if cfg.WatchConfig {
		yellow.Fprint(w, "    ▶ ")
		fmt.Fprintln(w, "Watching config for policy changes")
	}
	fmt.Fprintln(w)
}
