// ABOUTME: Operator subcommands: validate, health, audit and version
// ABOUTME: Each loads the config itself and prints a human-readable report to stdout

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/mcpware/internal/backend"
	"github.com/2389/mcpware/internal/config"
	"github.com/2389/mcpware/internal/mcp"
	"github.com/2389/mcpware/internal/store"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config, then print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := resolveConfigPath()
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), path, cfg)
			return nil
		},
	}
}

func printSummary(w io.Writer, path string, cfg *config.Config) {
	fmt.Fprintf(w, "%s %s\n\n", color.GreenString("✓ valid:"), path)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BACKEND\tLEVEL\tCOMMAND\tTIMEOUT")
	for _, b := range cfg.Backends {
		level, _ := cfg.SecurityPolicy.LevelOf(b.Name)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Name, level, strings.Join(b.Command, " "), b.Timeout())
	}
	tw.Flush()

	p := cfg.SecurityPolicy
	fmt.Fprintln(w)
	fmt.Fprintf(w, "prevent_sensitive_to_public:     %t\n", p.PreventSensitiveToPublic)
	fmt.Fprintf(w, "prevent_sensitive_data_leak:     %t\n", p.PreventSensitiveDataLeak)
	fmt.Fprintf(w, "sql_injection_protection:        %t\n", p.SQLInjectionProtection)
	fmt.Fprintf(w, "block_after_suspicious_activity: %t\n", p.BlockAfterSuspiciousActivity)
	fmt.Fprintf(w, "allow_client_session_ids:        %t\n", p.AllowClientSessionIDs)
	fmt.Fprintf(w, "session_timeout:                 %s\n", p.SessionTimeout())
}

func newHealthCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Start every backend, probe it with initialize, and print the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if logLevelFlag != "" {
				cfg.Logging.Level = logLevelFlag
			} else if cfg.Logging.Level == "" {
				cfg.Logging.Level = "warn"
			}
			logger := setupLogger(cfg.Logging, os.Stderr)

			ctx := cmd.Context()
			pool := backend.NewPool(cfg.Backends, logger, backend.Options{})
			pool.InitializeAll(ctx)
			results := pool.CheckAll(ctx)
			pool.CloseAll(ctx)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			if unhealthy := printHealth(cmd.OutOrStdout(), results); unhealthy > 0 {
				return fmt.Errorf("%d of %d backends are not healthy", unhealthy, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

// printHealth writes one line per backend and returns how many were not healthy.
func printHealth(w io.Writer, results []backend.HealthResult) int {
	unhealthy := 0
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BACKEND\tSTATUS\tSERVER\tDETAIL")
	for _, r := range results {
		status := color.GreenString(string(r.Status))
		if r.Status != backend.HealthHealthy {
			unhealthy++
			status = color.RedString(string(r.Status))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, status, serverLabel(r.ServerInfo), r.Error)
	}
	tw.Flush()
	return unhealthy
}

func serverLabel(info *mcp.ServerInfo) string {
	if info == nil || info.Name == "" {
		return "-"
	}
	if info.Version == "" {
		return info.Name
	}
	return info.Name + " " + info.Version
}

func newAuditCmd() *cobra.Command {
	var (
		sessionID  string
		backendID  string
		deniedOnly bool
		since      time.Duration
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recorded security decisions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.Audit.Path == "" {
				return fmt.Errorf("audit.path is not set in the config")
			}

			s, err := store.NewSQLiteStore(cfg.Audit.Path, setupLogger(config.LoggingConfig{Level: "warn"}, os.Stderr))
			if err != nil {
				return err
			}
			defer s.Close()

			filter := store.DecisionFilter{Limit: limit}
			if sessionID != "" {
				filter.SessionID = &sessionID
			}
			if backendID != "" {
				filter.Backend = &backendID
			}
			if deniedOnly {
				allowed := false
				filter.Allowed = &allowed
			}
			if since > 0 {
				from := time.Now().Add(-since)
				filter.Since = &from
			}

			decisions, err := s.ListDecisions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			printDecisions(cmd.OutOrStdout(), decisions)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "only this session id")
	cmd.Flags().StringVar(&backendID, "backend", "", "only this backend")
	cmd.Flags().BoolVar(&deniedOnly, "denied", false, "only denied decisions")
	cmd.Flags().DurationVar(&since, "since", 0, "only decisions newer than this (e.g. 1h)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows")
	return cmd
}

func printDecisions(w io.Writer, decisions []store.Decision) {
	if len(decisions) == 0 {
		fmt.Fprintln(w, "No decisions recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSESSION\tBACKEND\tTOOL\tPHASE\tRESULT\tREASON")
	for _, d := range decisions {
		result := color.GreenString("allow")
		if !d.Allowed {
			result = color.RedString("deny")
		}
		reason := d.Reason
		if len(d.Categories) > 0 {
			cats := append([]string(nil), d.Categories...)
			sort.Strings(cats)
			reason = strings.TrimSpace(reason + " [" + strings.Join(cats, ",") + "]")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Timestamp.Local().Format(time.DateTime), shortID(d.SessionID), d.Backend, dash(d.Tool), d.Phase, result, reason)
	}
	tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mcpware %s (MCP protocol %s)\n", version, mcp.ProtocolVersion)
		},
	}
}
