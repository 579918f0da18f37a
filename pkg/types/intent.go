// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the toolscout pipeline:
// query intents, search queries and results, tool candidates and analyses,
// session reports, error records, and configuration.
package types

// QueryType classifies the purpose of a developer-tools query.
type QueryType string

const (
	TypeAlternatives QueryType = "alternatives"
	TypeComparison   QueryType = "comparison"
	TypeFeatures     QueryType = "features"
	TypePricing      QueryType = "pricing"
	TypeTutorial     QueryType = "tutorial"
	TypeIntegration  QueryType = "integration"
	TypeGeneral      QueryType = "general"
)

// Category is the tool domain a query is about.
type Category string

const (
	CategoryMonitoring      Category = "monitoring"
	CategoryCICD            Category = "ci_cd"
	CategoryDatabase        Category = "database"
	CategoryCloud           Category = "cloud"
	CategoryMachineLearning Category = "machine_learning"
	CategoryFrontend        Category = "frontend"
	CategoryBackend         Category = "backend"
	CategoryDevOps          Category = "devops"
	CategorySecurity        Category = "security"
	CategoryTesting         Category = "testing"
	CategoryGeneral         Category = "general"
)

// QueryIntent is the structured classification of a raw query. Type and
// Category are always set; unmatched input yields general/general.
// Values are treated as immutable once returned by the classifier.
type QueryIntent struct {
	// RawText is the query exactly as submitted.
	RawText string `json:"raw_text" yaml:"raw_text"`

	Type     QueryType `json:"type" yaml:"type"`
	Category Category  `json:"category" yaml:"category"`

	// TargetEntities are the tools the query is about, lower-cased and
	// de-duplicated in first-seen order.
	TargetEntities []string `json:"target_entities" yaml:"target_entities"`

	// ComparisonEntities are the tools on either side of a comparison
	// separator ("vs", "versus", "compared to"), in query order.
	ComparisonEntities []string `json:"comparison_entities" yaml:"comparison_entities"`
}

// HasExplicitTargets reports whether the intent already names the tools to
// research, so discovery search can be skipped. An alternatives query names
// the tool to replace, not the candidates, and never qualifies.
func (i QueryIntent) HasExplicitTargets() bool {
	switch i.Type {
	case TypeComparison:
		return len(i.ComparisonEntities) >= 2
	case TypeFeatures, TypePricing, TypeTutorial, TypeIntegration:
		return len(i.TargetEntities) > 0
	default:
		return false
	}
}

// ExplicitTargets returns the entity list that becomes the candidate set
// when HasExplicitTargets is true.
func (i QueryIntent) ExplicitTargets() []string {
	if i.Type == TypeComparison {
		return i.ComparisonEntities
	}
	return i.TargetEntities
}
