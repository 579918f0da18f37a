// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"regexp"

	"github.com/pdiddy/toolscout/pkg/types"
)

// TypeRule matches one QueryType. Rules are evaluated in slice order and
// the first rule with any matching pattern wins.
type TypeRule struct {
	Type     types.QueryType
	Patterns []*regexp.Regexp
}

// CategoryRule matches one Category. Terms are generic domain words
// ("monitoring", "machine learning"); Products are tool names that imply
// the category ("datadog", "mlflow"). Both count for matching, but only
// Products may survive as target entities.
type CategoryRule struct {
	Category types.Category
	Terms    []string
	Products []string
}

// Rules is the immutable rule set a Classifier is built from.
type Rules struct {
	Types      []TypeRule
	Categories []CategoryRule

	// StopWords never become part of an entity.
	StopWords map[string]bool

	// IntentWords are the type keywords; they bound entity runs and are
	// dropped from target phrases.
	IntentWords map[string]bool
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// DefaultRules returns the built-in rule set. Type priority is
// comparison > alternatives > pricing > features > tutorial > integration,
// with general as the fallback. Category keyword tables are disjoint.
func DefaultRules() Rules {
	return Rules{
		Types: []TypeRule{
			{types.TypeComparison, patterns(
				`\b(vs|versus)\b`,
				`\bcompared? (to|with)\b`,
				`\bcompar(e|ing|ison)\b`,
				`\bdifferences? between\b`,
				`\bwhich\b.*\bbetter\b`,
			)},
			{types.TypeAlternatives, patterns(
				`\balternatives?\b`,
				`\breplacements?\b`,
				`\bsubstitutes?\b`,
				`\binstead of\b`,
				`\bsimilar to\b`,
				`\bcompetitors?\b`,
			)},
			{types.TypePricing, patterns(
				`\bpricing\b`,
				`\bprices?\b`,
				`\bcosts?\b`,
				`\bfree\b`,
				`\bpaid\b`,
			)},
			{types.TypeFeatures, patterns(
				`\bfeatures?\b`,
				`\bcapabilit(y|ies)\b`,
				`\bfunctionality\b`,
				`\bwhat\b.*\bcan\b.*\bdo\b`,
			)},
			{types.TypeTutorial, patterns(
				`\btutorials?\b`,
				`\bhow to\b`,
				`\bguides?\b`,
				`\bgetting started\b`,
				`\blearn\b`,
			)},
			{types.TypeIntegration, patterns(
				`\bintegrat(e|es|ion|ions|ing)\b`,
				`\bapis?\b`,
				`\bsdks?\b`,
				`\bconnect\b`,
				`\bplugins?\b`,
			)},
		},
		Categories: []CategoryRule{
			{
				Category: types.CategoryMonitoring,
				Terms:    []string{"monitoring", "logging", "logs", "observability", "analytics", "apm", "tracing", "alerting"},
				Products: []string{"datadog", "newrelic", "new relic", "grafana", "prometheus", "sentry", "splunk", "honeycomb"},
			},
			{
				Category: types.CategoryCICD,
				Terms:    []string{"ci", "cd", "ci/cd", "cicd", "continuous integration", "continuous delivery", "continuous deployment", "deployment", "pipeline", "pipelines"},
				Products: []string{"jenkins", "github actions", "gitlab", "circleci", "travis", "travis ci", "teamcity", "argocd", "buildkite"},
			},
			{
				Category: types.CategoryDatabase,
				Terms:    []string{"database", "databases", "db", "sql", "nosql"},
				Products: []string{"postgres", "postgresql", "mysql", "mongodb", "redis", "elasticsearch", "clickhouse", "sqlite", "dynamodb", "cassandra", "supabase"},
			},
			{
				Category: types.CategoryCloud,
				Terms:    []string{"cloud", "serverless", "hosting", "iaas", "paas"},
				Products: []string{"aws", "azure", "gcp", "google cloud", "terraform", "heroku", "digitalocean", "cloudflare"},
			},
			{
				Category: types.CategoryMachineLearning,
				Terms:    []string{"ml", "mlops", "machine learning", "ai", "artificial intelligence", "deep learning", "llm", "llms", "model training", "experiment tracking"},
				Products: []string{"mlflow", "tensorflow", "pytorch", "scikit-learn", "sklearn", "kubeflow", "hugging face", "huggingface", "weights & biases", "wandb"},
			},
			{
				Category: types.CategoryFrontend,
				Terms:    []string{"frontend", "front-end", "ui", "ux", "css", "component library", "design system"},
				Products: []string{"react", "vue", "angular", "svelte", "nextjs", "next.js", "tailwind"},
			},
			{
				Category: types.CategoryBackend,
				Terms:    []string{"backend", "back-end", "server", "web framework", "microservices"},
				Products: []string{"node", "node.js", "nodejs", "django", "flask", "fastapi", "spring", "express", "rails"},
			},
			{
				Category: types.CategoryDevOps,
				Terms:    []string{"devops", "container", "containers", "orchestration", "infrastructure as code", "k8s"},
				Products: []string{"kubernetes", "docker", "helm", "ansible", "puppet", "chef", "nomad", "podman"},
			},
			{
				Category: types.CategorySecurity,
				Terms:    []string{"security", "authentication", "authorization", "auth", "encryption", "secrets", "sso", "vulnerability", "vulnerabilities"},
				Products: []string{"vault", "keycloak", "oauth", "auth0", "okta", "snyk"},
			},
			{
				Category: types.CategoryTesting,
				Terms:    []string{"testing", "test", "tests", "qa", "e2e", "unit testing", "end-to-end"},
				Products: []string{"cypress", "selenium", "jest", "pytest", "playwright", "mocha", "junit"},
			},
		},
		StopWords: set(
			"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by",
			"is", "are", "what", "which", "who", "me", "my", "i", "we", "our", "some", "any", "other",
			"best", "top", "good", "great", "popular", "recommended", "recommend", "find", "looking",
			"tool", "tools", "software", "platform", "platforms", "framework", "frameworks",
			"library", "libraries", "service", "services", "solution", "solutions", "options",
			"practices", "practice", "open", "source", "there", "should", "use", "using",
		),
		IntentWords: set(
			"vs", "versus", "compare", "compared", "comparing", "comparison", "difference", "differences", "between", "better",
			"alternative", "alternatives", "replacement", "replacements", "substitute", "substitutes", "instead", "similar", "competitor", "competitors",
			"pricing", "price", "prices", "cost", "costs", "free", "paid", "plans",
			"feature", "features", "capability", "capabilities", "functionality",
			"tutorial", "tutorials", "how", "guide", "guides", "getting", "started", "learn",
			"integration", "integrations", "integrate", "api", "apis", "sdk", "sdks", "connect", "plugin", "plugins",
			"review", "reviews", "can", "do",
		),
	}
}
