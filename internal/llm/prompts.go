// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/template"

	"github.com/pdiddy/toolscout/pkg/types"
)

// Call purposes, used as metric labels.
const (
	PurposeExtraction     = "extraction"
	PurposeAnalysis       = "analysis"
	PurposeRecommendation = "recommendation"
)

// MaxExtractedTools caps how many tools one extraction may return.
const MaxExtractedTools = 5

const extractionSystem = `You are a tech researcher. Extract specific tool, library, platform, or service names from search results.
Focus on actual products that developers can use, not general concepts or features.`

var extractionTmpl = template.Must(template.New("extraction").Parse(`Query: {{.Query}}

Search results:
{{range $i, $r := .Results}}
[{{$i}}] {{$r.Title}}
URL: {{$r.URL}}
{{$r.Snippet}}
{{end}}
Extract the specific tool or service names mentioned above that are relevant to "{{.Query}}".

Rules:
- Only include actual product or tool names, not generic terms or concepts.
- Include both open source and commercial tools.
{{- if .Exclude}}
- Do not include {{.Exclude}} itself.
{{- end}}
- Return at most {{.Max}} tools, most relevant first.
- For each tool give a confidence between 0.0 and 1.0 that it is a real, relevant developer tool.
- For each tool list the indexes of the results that mention it.
`))

const analysisSystem = `You are analyzing developer tools and programming technologies.
Focus on information relevant to software developers: programming languages, frameworks, APIs, SDKs, and development workflows.`

var analysisTmpl = template.Must(template.New("analysis").Parse(`Tool: {{.Name}}
Website content:
{{.Content}}

Analyze this content from a developer's perspective and provide:
- pricing_model: one of "free", "freemium", "paid", "enterprise", or "unknown"
- is_open_source: true if open source, false if proprietary, null if unclear
- tech_stack: programming languages, frameworks, databases, APIs, or technologies supported or used
- description: one sentence on what this tool does for developers
- api_available: true if a REST API, GraphQL API, SDK, or other programmatic access is mentioned, null if unclear
- language_support: programming languages explicitly supported
- integration_capabilities: tools and platforms it integrates with (e.g. GitHub, VS Code, Docker, AWS)
`))

const recommendationSystem = `You are a senior software engineer giving quick, concise tech recommendations.
Keep the recommendation brief and actionable: at most 3-4 sentences.`

var recommendationTmpl = template.Must(template.New("recommendation").Funcs(funcs).Parse(`Developer query: {{.Query}}

Tools analyzed:
{{range .Analyses}}
- {{.Candidate.Name}}: pricing {{.PricingModel}}
{{- if .IsOpenSource}}, open source: {{deref .IsOpenSource}}{{end}}
{{- if .HasAPI}}, API: {{deref .HasAPI}}{{end}}
{{- if .TechStack}}, stack: {{join .TechStack}}{{end}}
{{- if .Description}}. {{.Description}}{{end}}
{{- end}}

Rank every tool above from best to worst fit for the query, using the exact names given.
Then write a brief recommendation covering which tool is best and why, the key pricing consideration, and the main technical advantage.
`))

var funcs = template.FuncMap{
	"deref": func(b *bool) bool { return *b },
	"join":  func(s []string) string { return strings.Join(s, ", ") },
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		// Templates are fixed and data is plain values; this is a
		// programming error.
		panic(fmt.Sprintf("rendering %s prompt: %v", t.Name(), err))
	}
	return buf.String()
}

// --- extraction ---

// ExtractedTools is the answer to an extraction request.
type ExtractedTools struct {
	Tools []ExtractedTool `json:"tools"`
}

// ExtractedTool is one tool named in the search results.
type ExtractedTool struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`

	// Sources are indexes into the results passed to the prompt.
	Sources []int `json:"sources"`
}

// ExtractionRequest asks for the tools mentioned in results. exclude
// names a tool to leave out (the subject of an alternatives query).
func ExtractionRequest(query, exclude string, results []types.SearchResult) Request {
	return Request{
		Purpose: PurposeExtraction,
		System:  extractionSystem,
		User: render(extractionTmpl, struct {
			Query, Exclude string
			Results        []types.SearchResult
			Max            int
		}{query, exclude, results, MaxExtractedTools}),
		Schema: &Schema{Name: "tool_extraction", Definition: object(map[string]any{
			"tools": map[string]any{
				"type": "array",
				"items": object(map[string]any{
					"name":       map[string]any{"type": "string"},
					"confidence": map[string]any{"type": "number"},
					"sources":    map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
				}),
			},
		})},
	}
}

// ValidateExtraction trims names, drops empty ones, clamps confidence to
// [0,1] and caps the list.
func ValidateExtraction(v *ExtractedTools) error {
	kept := v.Tools[:0]
	for _, t := range v.Tools {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			continue
		}
		t.Confidence = min(max(t.Confidence, 0), 1)
		kept = append(kept, t)
	}
	if len(kept) > MaxExtractedTools {
		kept = kept[:MaxExtractedTools]
	}
	v.Tools = kept
	return nil
}

// --- analysis ---

// Analysis is the answer to an analysis request.
type Analysis struct {
	PricingModel    string   `json:"pricing_model"`
	IsOpenSource    *bool    `json:"is_open_source"`
	TechStack       []string `json:"tech_stack"`
	Description     string   `json:"description"`
	APIAvailable    *bool    `json:"api_available"`
	LanguageSupport []string `json:"language_support"`
	Integrations    []string `json:"integration_capabilities"`
}

// AnalysisRequest asks for the structured analysis of one tool. content
// is truncated to maxChars runes.
func AnalysisRequest(name, content string, maxChars int) Request {
	if r := []rune(content); maxChars > 0 && len(r) > maxChars {
		content = string(r[:maxChars])
	}
	nullableBool := map[string]any{"type": []string{"boolean", "null"}}
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return Request{
		Purpose: PurposeAnalysis,
		System:  analysisSystem,
		User:    render(analysisTmpl, struct{ Name, Content string }{name, content}),
		Schema: &Schema{Name: "tool_analysis", Definition: object(map[string]any{
			"pricing_model": map[string]any{
				"type": "string",
				"enum": []string{"free", "freemium", "paid", "enterprise", "unknown"},
			},
			"is_open_source":           nullableBool,
			"tech_stack":               stringList,
			"description":              map[string]any{"type": "string"},
			"api_available":            nullableBool,
			"language_support":         stringList,
			"integration_capabilities": stringList,
		})},
	}
}

// ValidateAnalysis rejects a pricing model outside the known set.
func ValidateAnalysis(v *Analysis) error {
	p := strings.ToLower(strings.TrimSpace(v.PricingModel))
	if types.ParsePricingModel(p) == types.PricingUnknown && p != string(types.PricingUnknown) {
		return fmt.Errorf("unknown pricing_model %q", v.PricingModel)
	}
	return nil
}

// ToToolAnalysis converts the answer into the session record.
func (a Analysis) ToToolAnalysis(c types.ToolCandidate) types.ToolAnalysis {
	return types.ToolAnalysis{
		Candidate:       c,
		PricingModel:    types.ParsePricingModel(a.PricingModel),
		TechStack:       types.StringSet(a.TechStack),
		Integrations:    types.StringSet(a.Integrations),
		LanguageSupport: types.StringSet(a.LanguageSupport),
		HasAPI:          a.APIAvailable,
		IsOpenSource:    a.IsOpenSource,
		Description:     strings.TrimSpace(a.Description),
	}
}

// --- recommendation ---

// Recommendation is the answer to a recommendation request.
type Recommendation struct {
	Ranking []string `json:"ranking"`
	Text    string   `json:"recommendation"`
}

// RecommendationRequest asks for a ranking of analyses and a short
// recommendation.
func RecommendationRequest(query string, analyses []types.ToolAnalysis) Request {
	return Request{
		Purpose: PurposeRecommendation,
		System:  recommendationSystem,
		User: render(recommendationTmpl, struct {
			Query    string
			Analyses []types.ToolAnalysis
		}{query, analyses}),
		Schema: &Schema{Name: "recommendation", Definition: object(map[string]any{
			"ranking":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"recommendation": map[string]any{"type": "string"},
		})},
	}
}

// RankingValidator returns a validator that requires the ranking to be a
// permutation of names (compared case-insensitively) and the text to be
// non-empty. Ranked names are rewritten to the canonical spelling.
func RankingValidator(names []string) func(*Recommendation) error {
	return func(v *Recommendation) error {
		if strings.TrimSpace(v.Text) == "" {
			return errors.New("empty recommendation text")
		}
		canonical := make(map[string]string, len(names))
		for _, n := range names {
			canonical[types.NormalizeToolName(n)] = n
		}
		seen := make(map[string]bool, len(names))
		ranked := make([]string, 0, len(names))
		for _, r := range v.Ranking {
			key := types.NormalizeToolName(r)
			name, ok := canonical[key]
			if !ok {
				return fmt.Errorf("ranking names unknown tool %q", r)
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			ranked = append(ranked, name)
		}
		if len(ranked) != len(names) {
			return fmt.Errorf("ranking covers %d of %d tools", len(ranked), len(names))
		}
		v.Ranking = ranked
		v.Text = strings.TrimSpace(v.Text)
		return nil
	}
}

// object builds a strict JSON Schema object with every property required.
func object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	slices.Sort(required)
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
