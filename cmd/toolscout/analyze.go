// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/toolscout/internal/query"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <query>",
	Short: "Show how a query would be classified and searched",
	Long: `Analyze classifies the query and builds its search queries without
calling any search provider or language model.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := query.Analyze(query.Default(), query.DefaultBuilder(), strings.Join(args, " "))
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(a)
		}
		printAnalysis(os.Stdout, a)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "output the analysis as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func printAnalysis(w io.Writer, a query.Analysis) {
	fmt.Fprintf(w, "Query:      %s\n", a.Intent.RawText)
	fmt.Fprintf(w, "Type:       %s\n", a.Intent.Type)
	fmt.Fprintf(w, "Category:   %s\n", a.Intent.Category)
	fmt.Fprintf(w, "Targets:    %s\n", orNone(a.Intent.TargetEntities))
	if len(a.Intent.ComparisonEntities) > 0 {
		fmt.Fprintf(w, "Comparing:  %s\n", strings.Join(a.Intent.ComparisonEntities, " vs "))
	}
	fmt.Fprintf(w, "Discovery:  %s\n", map[bool]string{true: "skipped (tools named in query)", false: "web search"}[a.SkipsDiscovery])
	fmt.Fprintf(w, "Valid:      %t\n", a.Valid)
	if a.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", a.Error)
	}
	if len(a.Queries) > 0 {
		fmt.Fprintf(w, "\nSearch queries:\n")
		for i, q := range a.Queries {
			fmt.Fprintf(w, "  %d. %-60s [%s]\n", i+1, q.Text, q.SourceHint)
		}
	}
}

func orNone(s []string) string {
	if len(s) == 0 {
		return "(none)"
	}
	return strings.Join(s, ", ")
}
