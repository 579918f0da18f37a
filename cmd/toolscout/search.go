// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/toolscout/internal/query"
	"github.com/pdiddy/toolscout/internal/search"
	"github.com/pdiddy/toolscout/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run the hybrid web search for a query and print the results",
	Long: `Search builds the search queries for a developer-tools query and runs
them through the provider tiers (Firecrawl, then Serper) with fallback,
de-duplication by URL, and the configured result cap. No language model is
called.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("max-results", 0, "maximum number of results (default from config)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().String("save", "", "save the search and its results to a YAML file")
	searchCmd.Flags().String("load", "", "print results from a saved YAML file instead of searching")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	if load, _ := cmd.Flags().GetString("load"); load != "" {
		qf, err := search.ReadQueryFile(load)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%q: %d results saved %s\n", qf.Query, qf.Summary.Total, qf.Summary.Timestamp.Format(time.RFC3339))
		return printResults(qf.Results, asJSON)
	}
	if len(args) == 0 {
		return fmt.Errorf("provide a query or --load")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if creds.Firecrawl == "" {
		return fmt.Errorf("missing credentials: firecrawl-api-key (FIRECRAWL_API_KEY)")
	}
	if n, _ := cmd.Flags().GetInt("max-results"); n > 0 {
		cfg.Search.MaxResults = n
	}

	logger, err := newLogger(cmd, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	strategy, rdb, err := newStrategy(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	raw := strings.Join(args, " ")
	queries, err := query.DefaultBuilder().Build(query.Default().Classify(raw))
	if err != nil {
		return err
	}
	out, err := strategy.Run(ctx, string(types.StageDiscovering), queries)
	for _, rec := range out.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s: %s (%s)\n", rec.Kind, rec.Message, rec.Subject)
	}
	if err != nil {
		return err
	}

	if save, _ := cmd.Flags().GetString("save"); save != "" {
		if err := strategy.WriteQueryFile(save, raw, queries, out, time.Now()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved %s\n", save)
	}

	fmt.Fprintf(os.Stderr, "%d results from %d queries via %s (%d duplicates removed)\n",
		len(out.Results), len(queries), strings.Join(strategy.Tiers(), " > "), out.DupsRemoved)
	return printResults(out.Results, asJSON)
}

func printResults(results []types.SearchResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	search.FormatTable(results, os.Stdout)
	return nil
}
