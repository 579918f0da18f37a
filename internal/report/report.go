// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders session reports as Markdown, YAML, or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/toolscout/pkg/types"
)

// Format is an export encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported report extension %q (want .md, .yaml, or .json)", filepath.Ext(path))
	}
}

// WriteFile writes r to path in the format implied by its extension.
func WriteFile(path string, r types.Report) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := Encode(f, r)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Encode renders r in format f.
func Encode(f Format, r types.Report) ([]byte, error) {
	switch f {
	case FormatYAML:
		data, err := yaml.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshaling YAML: %w", err)
		}
		return data, nil
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatMarkdown:
		var b strings.Builder
		Markdown(&b, r)
		return []byte(b.String()), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", f)
	}
}

// Markdown writes a human-readable summary of r.
func Markdown(w io.Writer, r types.Report) {
	fmt.Fprintf(w, "# Research: %s\n\n", r.Query)
	fmt.Fprintf(w, "- Session: `%s`\n", r.SessionID)
	fmt.Fprintf(w, "- Intent: %s / %s\n", r.Intent.Type, r.Intent.Category)
	if r.Failed() {
		fmt.Fprintf(w, "- Status: failed in %s (%s)\n", r.FailedIn, r.FailureKind)
	} else {
		fmt.Fprintf(w, "- Status: %s\n", r.Stage)
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "- Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}

	if rec := r.Recommendation; rec != nil {
		fmt.Fprintf(w, "\n## Recommendation\n\n%s\n", rec.Text)
		if len(rec.Ranking) > 0 {
			fmt.Fprintln(w)
			for i, name := range rec.Ranking {
				fmt.Fprintf(w, "%d. %s\n", i+1, name)
			}
		}
		if rec.Degraded {
			fmt.Fprintf(w, "\n_Ranking fell back to discovery confidence._\n")
		}
	}

	if len(r.Analyses) > 0 {
		fmt.Fprintf(w, "\n## Tools\n\n")
		fmt.Fprintf(w, "| Tool | Pricing | Open source | API | Tech stack | Website |\n")
		fmt.Fprintf(w, "|---|---|---|---|---|---|\n")
		for _, a := range r.Analyses {
			pricing := string(a.PricingModel)
			if a.Degraded {
				pricing += " (degraded)"
			}
			fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s |\n",
				cell(a.Candidate.Name), pricing, tristate(a.IsOpenSource), tristate(a.HasAPI),
				cell(strings.Join(a.TechStack, ", ")), cell(a.Candidate.Website))
		}
		for _, a := range r.Analyses {
			if a.Description == "" && len(a.Integrations) == 0 && len(a.LanguageSupport) == 0 {
				continue
			}
			fmt.Fprintf(w, "\n### %s\n\n", a.Candidate.Name)
			if a.Description != "" {
				fmt.Fprintf(w, "%s\n\n", a.Description)
			}
			if len(a.LanguageSupport) > 0 {
				fmt.Fprintf(w, "- Languages: %s\n", strings.Join(a.LanguageSupport, ", "))
			}
			if len(a.Integrations) > 0 {
				fmt.Fprintf(w, "- Integrations: %s\n", strings.Join(a.Integrations, ", "))
			}
		}
	} else if len(r.Candidates) > 0 {
		fmt.Fprintf(w, "\n## Candidates\n\n")
		for _, c := range r.Candidates {
			fmt.Fprintf(w, "- %s (%.2f)\n", c.Name, c.Confidence)
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "\n## Errors\n\n")
		for _, e := range r.Errors {
			line := fmt.Sprintf("- [%s] %s: %s", e.Stage, e.Kind, e.Message)
			if e.Subject != "" {
				line += fmt.Sprintf(" (%s)", e.Subject)
			}
			if e.Recovered {
				line += " [recovered]"
			}
			fmt.Fprintln(w, line)
		}
	}
}

func tristate(b *bool) string {
	switch {
	case b == nil:
		return "?"
	case *b:
		return "yes"
	default:
		return "no"
	}
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}
