// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"sort"
	"strings"
)

// ToolCandidate is a tool identified during discovery. Candidates are unique
// by normalized name within a session.
type ToolCandidate struct {
	Name string `json:"name" yaml:"name"`

	// SourceURLs is a sorted set of URLs the candidate was found in or
	// researched from.
	SourceURLs []string `json:"source_urls" yaml:"source_urls"`

	// Confidence is between 0.0 and 1.0.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Website is the page scraped during research, if any.
	Website string `json:"website,omitempty" yaml:"website,omitempty"`
}

// Key returns the normalized name used for uniqueness.
func (c ToolCandidate) Key() string {
	return NormalizeToolName(c.Name)
}

// AddSourceURL inserts u into SourceURLs, keeping the set sorted.
func (c *ToolCandidate) AddSourceURL(u string) {
	if u == "" {
		return
	}
	i := sort.SearchStrings(c.SourceURLs, u)
	if i < len(c.SourceURLs) && c.SourceURLs[i] == u {
		return
	}
	c.SourceURLs = append(c.SourceURLs, "")
	copy(c.SourceURLs[i+1:], c.SourceURLs[i:])
	c.SourceURLs[i] = u
}

// NormalizeToolName lower-cases and collapses whitespace.
func NormalizeToolName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// PricingModel is the commercial model of a tool.
type PricingModel string

const (
	PricingFree       PricingModel = "free"
	PricingFreemium   PricingModel = "freemium"
	PricingPaid       PricingModel = "paid"
	PricingEnterprise PricingModel = "enterprise"
	PricingUnknown    PricingModel = "unknown"
)

// ParsePricingModel maps free-form text to a PricingModel. Anything not
// recognized is PricingUnknown.
func ParsePricingModel(s string) PricingModel {
	switch PricingModel(strings.ToLower(strings.TrimSpace(s))) {
	case PricingFree:
		return PricingFree
	case PricingFreemium:
		return PricingFreemium
	case PricingPaid:
		return PricingPaid
	case PricingEnterprise:
		return PricingEnterprise
	default:
		return PricingUnknown
	}
}

// ToolAnalysis is the structured analysis of one candidate. It is produced
// once per candidate and not modified afterwards.
type ToolAnalysis struct {
	Candidate    ToolCandidate `json:"candidate" yaml:"candidate"`
	PricingModel PricingModel  `json:"pricing_model" yaml:"pricing_model"`

	// TechStack, Integrations and LanguageSupport are sorted sets.
	TechStack       []string `json:"tech_stack" yaml:"tech_stack"`
	Integrations    []string `json:"integrations" yaml:"integrations"`
	LanguageSupport []string `json:"language_support,omitempty" yaml:"language_support,omitempty"`

	// HasAPI and IsOpenSource are nil when the content was inconclusive.
	HasAPI       *bool `json:"has_api" yaml:"has_api"`
	IsOpenSource *bool `json:"is_open_source" yaml:"is_open_source"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Degraded is set when the analysis could not be extracted and the
	// record only carries defaults.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

// StringSet returns the sorted, de-duplicated, non-empty values of in.
func StringSet(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
