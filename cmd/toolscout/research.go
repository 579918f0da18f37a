// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/toolscout/internal/history"
	"github.com/pdiddy/toolscout/internal/report"
)

var researchCmd = &cobra.Command{
	Use:   "research <query>",
	Short: "Run a research session for a developer-tools query",
	Long: `Research classifies the query, discovers candidate tools through web
search, researches and analyzes each candidate, and prints a recommendation.
Stage progress goes to stderr; the report goes to stdout and, with --output,
to a .md, .yaml or .json file. Every finished session is stored in the
history database.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().StringP("output", "o", "", "also write the report to this file (.md, .yaml, or .json)")
	researchCmd.Flags().Bool("json", false, "print the report as JSON instead of Markdown")
	researchCmd.Flags().Bool("no-history", false, "do not store the session in the history database")

	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := creds.Validate(); err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	if output != "" {
		if _, err := report.FormatFor(output); err != nil {
			return err
		}
	}

	logger, err := newLogger(cmd, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p, err := newPipeline(ctx, cfg, os.Stderr, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	r := p.machine.Run(ctx, strings.Join(args, " "))

	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
		store, err := history.Open(cfg.History, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: session not saved: %v\n", err)
		} else {
			if err := store.Save(context.Background(), r); err != nil {
				fmt.Fprintf(os.Stderr, "warning: session not saved: %v\n", err)
			}
			store.Close()
		}
	}

	if output != "" {
		if err := report.WriteFile(output, r); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", output)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return err
		}
	} else {
		report.Markdown(os.Stdout, r)
	}

	if r.Failed() {
		return fmt.Errorf("session %s failed in %s: %s", r.SessionID, r.FailedIn, r.FailureKind)
	}
	return nil
}
