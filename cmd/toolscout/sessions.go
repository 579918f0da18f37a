// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/toolscout/internal/history"
	"github.com/pdiddy/toolscout/internal/report"
	"github.com/pdiddy/toolscout/pkg/types"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and show stored research sessions",
	Long: `Sessions reads the SQLite history of finished research sessions,
completed or failed.`,
}

// --- list subcommand ---

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, newest first",
	RunE:  runSessionsList,
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	q, _ := cmd.Flags().GetString("query")
	stage, _ := cmd.Flags().GetString("stage")
	limit, _ := cmd.Flags().GetInt("limit")
	list, err := store.List(context.Background(), history.ListOptions{
		Query: q,
		Stage: types.Stage(stage),
		Limit: limit,
	})
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if len(list) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-10s  %-5s  %s\n", "ID", "Started", "Stage", "Tools", "Query")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, s := range list {
		stage := string(s.Stage)
		if s.FailureKind != "" {
			stage += " (" + string(s.FailureKind) + ")"
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-10s  %-5d  %s\n",
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), stage, s.Analyses, s.Query)
	}
	return nil
}

// --- show subcommand ---

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored session report",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := store.Get(context.Background(), args[0])
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	data, err := report.Encode(report.Format(format), r)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func openHistory() (*history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.History, nil)
}

func init() {
	sessionsListCmd.Flags().String("query", "", "only sessions whose query contains this text")
	sessionsListCmd.Flags().String("stage", "", "only sessions that ended in this stage: completed, failed")
	sessionsListCmd.Flags().Int("limit", 20, "maximum number of sessions")
	sessionsListCmd.Flags().Bool("json", false, "output as JSON")

	sessionsShowCmd.Flags().String("format", string(report.FormatMarkdown), "output format: markdown, yaml, json")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}
