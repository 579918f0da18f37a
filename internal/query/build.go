// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/toolscout/internal/failure"
	"github.com/pdiddy/toolscout/pkg/types"
)

const (
	// MaxQueries caps the Builder output, raw fallback included.
	MaxQueries = 5

	// MaxQueryLength is the longest query text providers accept.
	MaxQueryLength = 200

	// minSignificantTokens rejects template output that collapsed to a
	// single word.
	minSignificantTokens = 2

	// maxSpecialRatio rejects queries dominated by punctuation.
	maxSpecialRatio = 0.3
)

// Templates maps each QueryType to its query skeleton. {tool} is the
// first target entity; {other} is the second comparison entity.
type Templates struct {
	Type       map[types.QueryType]string
	Article    map[types.QueryType]string
	Qualifiers map[types.Category]string
}

// DefaultTemplates returns the built-in templates. Only the pricing
// templates mention pricing.
func DefaultTemplates() Templates {
	return Templates{
		Type: map[types.QueryType]string{
			types.TypeAlternatives: "{tool} alternatives",
			types.TypeComparison:   "{tool} vs {other} comparison features",
			types.TypeFeatures:     "{tool} features capabilities documentation",
			types.TypePricing:      "{tool} pricing plans cost",
			types.TypeTutorial:     "{tool} tutorial getting started guide",
			types.TypeIntegration:  "{tool} integration API SDK documentation",
			types.TypeGeneral:      "{tool} developer tools",
		},
		Article: map[types.QueryType]string{
			types.TypeAlternatives: "{tool} alternatives comparison best tools",
			types.TypeComparison:   "{tool} vs {other} comparison review analysis",
			types.TypeFeatures:     "{tool} features capabilities review",
			types.TypePricing:      "{tool} pricing cost analysis",
		},
		Qualifiers: map[types.Category]string{
			types.CategoryMonitoring:      "monitoring logging observability",
			types.CategoryCICD:            "CI CD pipeline deployment",
			types.CategoryDatabase:        "database management",
			types.CategoryCloud:           "cloud infrastructure",
			types.CategoryMachineLearning: "machine learning AI",
			types.CategoryFrontend:        "frontend framework UI",
			types.CategoryBackend:         "backend API framework",
			types.CategoryDevOps:          "devops containers deployment",
			types.CategorySecurity:        "security authentication",
			types.CategoryTesting:         "testing framework",
			types.CategoryGeneral:         "software",
		},
	}
}

// articleDefault is used for types without an article template.
const articleDefault = "{tool} developer tools software review"

// Builder turns a QueryIntent into ranked SearchQuery values.
type Builder struct {
	templates Templates
	stopWords map[string]bool
	vocab     Rules
}

// NewBuilder returns a Builder over the given templates.
func NewBuilder(t Templates) *Builder {
	return &Builder{
		templates: t,
		stopWords: set("the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by"),
		vocab:     DefaultRules(),
	}
}

// DefaultBuilder returns a Builder over DefaultTemplates.
func DefaultBuilder() *Builder {
	return NewBuilder(DefaultTemplates())
}

// Build returns between one and MaxQueries queries in preference order.
// The normalized raw text always comes last with the fallback hint; it
// is the only query cut to MaxQueryLength, template queries over the
// limit are dropped. When the query names nothing searchable beyond stop
// and intent words, only the raw text is returned. A QueryValidationError
// is returned only when the raw text itself is empty after normalization.
func (b *Builder) Build(intent types.QueryIntent) ([]types.SearchQuery, error) {
	raw := strings.Join(strings.Fields(intent.RawText), " ")
	if raw == "" {
		return nil, &failure.QueryValidationError{Query: intent.RawText, Reason: "empty after normalization"}
	}

	tool := b.subject(intent, raw)
	if tool == "" {
		return b.withFallback(nil, nil, raw), nil
	}
	other := ""
	if len(intent.ComparisonEntities) > 1 {
		other = intent.ComparisonEntities[1]
	}

	var candidates []string
	typeTmpl := b.templates.Type[intent.Type]
	if intent.Type == types.TypeComparison && other == "" {
		typeTmpl = b.templates.Type[types.TypeGeneral]
	}
	if typeTmpl != "" {
		q := fill(typeTmpl, tool, other)
		candidates = append(candidates, appendTerms(q, b.templates.Qualifiers[intent.Category]))
	}

	article := articleDefault
	if a, ok := b.templates.Article[intent.Type]; ok && (intent.Type != types.TypeComparison || other != "") {
		article = a
	}
	candidates = append(candidates, fill(article, tool, other))

	// One query per additional comparison entity so each side gets
	// coverage of its own.
	if intent.Type == types.TypeComparison {
		for _, e := range intent.ComparisonEntities {
			candidates = append(candidates, appendTerms(e+" review", b.templates.Qualifiers[intent.Category]))
		}
	}

	seen := make(map[string]bool)
	var out []types.SearchQuery
	for _, c := range candidates {
		if len(out) == MaxQueries-1 {
			break
		}
		q := b.optimize(c)
		if !b.valid(q) || seen[strings.ToLower(q)] {
			continue
		}
		seen[strings.ToLower(q)] = true
		out = append(out, types.SearchQuery{Text: q, SourceHint: types.HintPrimary, Rank: len(out)})
	}

	return b.withFallback(out, seen, raw), nil
}

// withFallback appends the normalized raw text unless it is already
// present.
func (b *Builder) withFallback(out []types.SearchQuery, seen map[string]bool, raw string) []types.SearchQuery {
	fallback := truncate(strings.ToLower(raw), MaxQueryLength)
	if seen[fallback] {
		return out
	}
	return append(out, types.SearchQuery{Text: fallback, SourceHint: types.HintFallback, Rank: len(out)})
}

// subject is the {tool} value: the first target entity, or the raw text
// with stop and intent words removed. It is empty when nothing remains.
func (b *Builder) subject(intent types.QueryIntent, raw string) string {
	if len(intent.TargetEntities) > 0 {
		return intent.TargetEntities[0]
	}
	var kept []string
	for _, tok := range Tokenize(raw) {
		if b.vocab.StopWords[tok] || b.vocab.IntentWords[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

func fill(tmpl, tool, other string) string {
	r := strings.NewReplacer("{tool}", tool, "{other}", other)
	return r.Replace(tmpl)
}

// appendTerms adds the words of extra that q does not already contain.
func appendTerms(q, extra string) string {
	have := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(q)) {
		have[w] = true
	}
	parts := []string{q}
	for _, w := range strings.Fields(extra) {
		if !have[strings.ToLower(w)] {
			have[strings.ToLower(w)] = true
			parts = append(parts, w)
		}
	}
	return strings.Join(parts, " ")
}

// optimize collapses whitespace and drops stop words.
func (b *Builder) optimize(q string) string {
	var kept []string
	for _, w := range strings.Fields(q) {
		if b.stopWords[strings.ToLower(w)] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func (b *Builder) valid(q string) bool {
	if q == "" || len(q) > MaxQueryLength {
		return false
	}
	significant := 0
	for _, w := range strings.Fields(q) {
		if !b.stopWords[strings.ToLower(w)] {
			significant++
		}
	}
	if significant < minSignificantTokens {
		return false
	}
	special := 0
	total := 0
	for _, r := range q {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) && !strings.ContainsRune("-./+#&", r) {
			special++
		}
	}
	return float64(special)/float64(total) <= maxSpecialRatio
}

// truncate cuts q to at most n bytes on a word boundary, or on a rune
// boundary when the first word alone is too long.
func truncate(q string, n int) string {
	if len(q) <= n {
		return q
	}
	for n > 0 && !utf8.RuneStart(q[n]) {
		n--
	}
	cut := q[:n]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
