package discovery

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

var trailingID = regexp.MustCompile(`-(\d+)/?$`)

type compiledRule struct {
	category string
	action   string
	patterns []*regexp.Regexp
}

// Categorizer assigns a category and URL kind to a page URL.
type Categorizer struct {
	rules           []compiledRule
	defaultCategory string
}

// Classification is the categorizer's verdict for one URL.
type Classification struct {
	Category string
	Action   string
	Kind     domain.URLKind
}

// Skipped reports whether the URL should not be stored.
func (c Classification) Skipped() bool {
	return c.Action == ActionSkip
}

// NewCategorizer compiles the rules. An invalid pattern is a config error.
func NewCategorizer(rules []CategoryRule, defaultCategory string) (*Categorizer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{category: r.Category, action: r.Action}
		if _, ok := kindFor(r.Action); !ok && r.Action != ActionSkip {
			return nil, fmt.Errorf("rule %q: unknown action %q", r.Category, r.Action)
		}
		for _, p := range r.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("rule %q: compile %q: %w", r.Category, p, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		compiled = append(compiled, cr)
	}
	if defaultCategory == "" {
		defaultCategory = defaultCategoryFallback
	}
	return &Categorizer{rules: compiled, defaultCategory: defaultCategory}, nil
}

// Classify returns the first matching rule's verdict, or the default
// content category.
func (c *Categorizer) Classify(url string) Classification {
	for _, r := range c.rules {
		for _, re := range r.patterns {
			if !re.MatchString(url) {
				continue
			}
			kind, _ := kindFor(r.action)
			return Classification{Category: r.category, Action: r.action, Kind: kind}
		}
	}
	return Classification{Category: c.defaultCategory, Action: ActionContent, Kind: domain.URLKindContent}
}

// ExtractReference pulls the trailing numeric id from a record detail URL.
func ExtractReference(url string) string {
	m := trailingID.FindStringSubmatch(url)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// ContentCategories lists every category that yields content URLs,
// including the default.
func (c *Categorizer) ContentCategories() []string {
	out := make([]string, 0, len(c.rules)+1)
	for _, r := range c.rules {
		if r.action == ActionContent && !slices.Contains(out, r.category) {
			out = append(out, r.category)
		}
	}
	if !slices.Contains(out, c.defaultCategory) {
		out = append(out, c.defaultCategory)
	}
	return out
}
