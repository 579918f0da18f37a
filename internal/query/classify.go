// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query turns free-text research questions into a structured
// QueryIntent and an ordered list of provider-ready search queries.
package query

import (
	"strings"
	"unicode"

	"github.com/pdiddy/toolscout/internal/failure"
	"github.com/pdiddy/toolscout/pkg/types"
)

// maxEntityUnits bounds how many words one side of a comparison (or one
// target phrase) may span.
const maxEntityUnits = 3

// maxPhraseWords is the longest keyword phrase in the category tables.
const maxPhraseWords = 3

type unitKind int

const (
	unitPlain unitKind = iota
	unitProduct
	unitTerm
	unitStop
	unitIntent
)

type unit struct {
	text string
	kind unitKind
}

// Classifier assigns a type, a category and entities to a raw query.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	rules    Rules
	phrases  map[string]unitKind
	category map[string]types.Category
}

// NewClassifier builds a Classifier over the given rules. The rules are
// copied into lookup tables; later changes to the caller's slices have
// no effect.
func NewClassifier(rules Rules) *Classifier {
	c := &Classifier{
		rules:    rules,
		phrases:  make(map[string]unitKind),
		category: make(map[string]types.Category),
	}
	c.rules.Types = append([]TypeRule(nil), rules.Types...)
	c.rules.Categories = append([]CategoryRule(nil), rules.Categories...)
	for _, cr := range c.rules.Categories {
		for _, t := range cr.Terms {
			c.phrases[t] = unitTerm
		}
		for _, p := range cr.Products {
			c.phrases[p] = unitProduct
		}
	}
	return c
}

// Default returns a Classifier over DefaultRules.
func Default() *Classifier {
	return NewClassifier(DefaultRules())
}

// Classify never fails: unmatched input yields the general type and the
// general category with no entities.
func (c *Classifier) Classify(raw string) types.QueryIntent {
	tokens := Tokenize(raw)
	text := strings.Join(tokens, " ")

	intent := types.QueryIntent{
		RawText:  raw,
		Type:     c.matchType(text),
		Category: c.matchCategory(text),
	}

	units := c.chunk(tokens)
	switch intent.Type {
	case types.TypeComparison:
		intent.ComparisonEntities = comparisonEntities(units)
		if len(intent.ComparisonEntities) > 0 {
			intent.TargetEntities = intent.ComparisonEntities[:1:1]
		}
	case types.TypeAlternatives:
		intent.TargetEntities = alternativesEntities(units)
	default:
		intent.TargetEntities = generalEntities(units)
	}
	return intent
}

// SafeClassify is Classify with a panic barrier. The workflow calls this
// so a faulty rule table surfaces as a ClassificationError instead of
// taking the session down.
func (c *Classifier) SafeClassify(raw string) (intent types.QueryIntent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &failure.ClassificationError{Query: raw, Cause: r}
		}
	}()
	return c.Classify(raw), nil
}

func (c *Classifier) matchType(text string) types.QueryType {
	for _, rule := range c.rules.Types {
		for _, p := range rule.Patterns {
			if p.MatchString(text) {
				return rule.Type
			}
		}
	}
	return types.TypeGeneral
}

func (c *Classifier) matchCategory(text string) types.Category {
	padded := " " + text + " "
	for _, rule := range c.rules.Categories {
		for _, kw := range rule.Terms {
			if strings.Contains(padded, " "+kw+" ") {
				return rule.Category
			}
		}
		for _, kw := range rule.Products {
			if strings.Contains(padded, " "+kw+" ") {
				return rule.Category
			}
		}
	}
	return types.CategoryGeneral
}

// chunk groups tokens into units, joining known multi-word phrases
// greedily (longest match first).
func (c *Classifier) chunk(tokens []string) []unit {
	var units []unit
	for i := 0; i < len(tokens); {
		matched := false
		for n := min(maxPhraseWords, len(tokens)-i); n >= 1; n-- {
			phrase := strings.Join(tokens[i:i+n], " ")
			if kind, ok := c.phrases[phrase]; ok {
				units = append(units, unit{text: phrase, kind: kind})
				i += n
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		tok := tokens[i]
		kind := unitPlain
		switch {
		case c.rules.IntentWords[tok]:
			kind = unitIntent
		case c.rules.StopWords[tok]:
			kind = unitStop
		}
		units = append(units, unit{text: tok, kind: kind})
		i++
	}
	return units
}

func (u unit) entity() bool {
	return u.kind == unitPlain || u.kind == unitProduct
}

// operand reports whether u may be part of one side of a comparison.
// Category terms count here: "sql vs nosql" compares two terms.
func (u unit) operand() bool {
	return u.kind != unitStop && u.kind != unitIntent
}

func isSeparator(u unit) bool {
	return u.text == "vs" || u.text == "versus"
}

// leftRun returns the phrase of units accepted by ok that ends right
// before index end.
func leftRun(units []unit, end int, ok func(unit) bool) string {
	start := end
	for start > 0 && end-start < maxEntityUnits && ok(units[start-1]) {
		start--
	}
	return join(units[start:end])
}

// rightRun returns the phrase of units accepted by ok starting at index
// start, and the index just past it.
func rightRun(units []unit, start int, ok func(unit) bool) (string, int) {
	end := start
	for end < len(units) && end-start < maxEntityUnits && ok(units[end]) {
		end++
	}
	return join(units[start:end]), end
}

func join(units []unit) string {
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = u.text
	}
	return strings.Join(parts, " ")
}

// skipStops advances past stop-word units, e.g. the "to" in
// "alternatives to jenkins".
func skipStops(units []unit, i int) int {
	for i < len(units) && units[i].kind == unitStop {
		i++
	}
	return i
}

func comparisonEntities(units []unit) []string {
	var out []string
	first := -1
	for i, u := range units {
		if isSeparator(u) {
			first = i
			break
		}
	}
	if first >= 0 {
		out = appendEntity(out, leftRun(units, first, unit.operand))
		for i := first; i < len(units); i++ {
			if !isSeparator(units[i]) && !(units[i].text == "compared" && i+1 < len(units)) {
				continue
			}
			next := i + 1
			if units[i].text == "compared" {
				next = skipStops(units, next)
			}
			e, _ := rightRun(units, next, unit.operand)
			out = appendEntity(out, e)
		}
		return out
	}

	// "compare X and Y", "difference between X and Y", "X compared to Y".
	for i, u := range units {
		switch u.text {
		case "compared":
			out = appendEntity(out, leftRun(units, i, unit.operand))
			e, _ := rightRun(units, skipStops(units, i+1), unit.operand)
			return appendEntity(out, e)
		case "compare", "comparing", "comparison", "between":
			e, end := rightRun(units, skipStops(units, i+1), unit.operand)
			out = appendEntity(out, e)
			if end < len(units) {
				switch units[end].text {
				case "and", "with", "or", "to":
					e2, _ := rightRun(units, skipStops(units, end+1), unit.operand)
					out = appendEntity(out, e2)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return generalEntities(units)
}

var alternativeWords = map[string]bool{
	"alternative": true, "alternatives": true,
	"replacement": true, "replacements": true,
	"substitute": true, "substitutes": true,
	"competitor": true, "competitors": true,
}

func alternativesEntities(units []unit) []string {
	for i, u := range units {
		switch {
		case alternativeWords[u.text]:
			if e := leftRun(units, i, unit.entity); e != "" {
				return []string{e}
			}
			if e, _ := rightRun(units, skipStops(units, i+1), unit.entity); e != "" {
				return []string{e}
			}
		case u.text == "instead" || u.text == "similar":
			if e, _ := rightRun(units, skipStops(units, i+1), unit.entity); e != "" {
				return []string{e}
			}
		}
	}
	return generalEntities(units)
}

// generalEntities collects every contiguous run of entity units.
func generalEntities(units []unit) []string {
	var out []string
	for i := 0; i < len(units); {
		if !units[i].entity() {
			i++
			continue
		}
		start := i
		for i < len(units) && units[i].entity() {
			i++
		}
		if i-start <= maxEntityUnits {
			out = appendEntity(out, join(units[start:i]))
		}
	}
	return out
}

func appendEntity(list []string, e string) []string {
	if e == "" {
		return list
	}
	for _, x := range list {
		if x == e {
			return list
		}
	}
	return append(list, e)
}

// Tokenize lowercases raw and splits it on whitespace and sentence
// punctuation. Dots, dashes, slashes and plus signs inside a token are
// kept so names like "node.js", "ci/cd" and "c++" survive.
func Tokenize(raw string) []string {
	fields := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		if unicode.IsSpace(r) {
			return true
		}
		switch r {
		case ',', ';', ':', '?', '!', '(', ')', '[', ']', '"', '\'', '`':
			return true
		}
		return false
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".-")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
