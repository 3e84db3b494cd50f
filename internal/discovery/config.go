package discovery

import "github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"

// Default configuration values.
const (
	defaultMaxPages         = 50
	defaultConcurrency      = 5
	defaultMaxSitemaps      = 100
	defaultSitemapURL       = "https://www.spca.com/sitemap_index.xml"
	defaultInfoSeparator    = "●"
	defaultCategoryFallback = "general"
)

// Listing is one category index to page through.
type Listing struct {
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// CardSelectors locate the repeated cards on a listing page.
type CardSelectors struct {
	Container string `yaml:"container"`
	Card      string `yaml:"card"`
	Link      string `yaml:"link"`
	Name      string `yaml:"name"`
	Info      string `yaml:"info"`
	Thumbnail string `yaml:"thumbnail"`
	// InfoSeparator splits the summary line into species, age, sex and size.
	InfoSeparator string `yaml:"info_separator"`
}

// Rule action values.
const (
	ActionRecord  = "record"
	ActionContent = "content"
	ActionSkip    = "skip"
)

// CategoryRule maps URLs matching any of Patterns to a category. Rules are
// evaluated in order and the first match wins.
type CategoryRule struct {
	Category string   `yaml:"category"`
	Action   string   `yaml:"action"`
	Patterns []string `yaml:"patterns"`
}

// Config holds discovery configuration.
type Config struct {
	Listings    []Listing      `yaml:"listings"`
	SitemapURL  string         `env:"DISCOVERY_SITEMAP_URL" yaml:"sitemap_url"`
	MaxPages    int            `env:"DISCOVERY_MAX_PAGES"   yaml:"max_pages"`
	Concurrency int            `env:"DISCOVERY_CONCURRENCY" yaml:"concurrency"`
	MaxSitemaps int            `yaml:"max_sitemaps"`
	Cards       CardSelectors  `yaml:"cards"`
	Rules       []CategoryRule `yaml:"rules"`
	// DefaultCategory applies to URLs no rule matched.
	DefaultCategory string `yaml:"default_category"`
}

// DefaultListings returns the English adoption indexes. The French indexes
// list the same animals under the same reference numbers, so enabling both
// makes each record alternate between two renderings.
func DefaultListings() []Listing {
	return []Listing{
		{URL: "https://www.spca.com/en/adoption/cats-for-adoption/", Category: "cats"},
		{URL: "https://www.spca.com/en/adoption/dogs-for-adoption/", Category: "dogs"},
		{URL: "https://www.spca.com/en/adoption/rabbits-for-adoption/", Category: "rabbits"},
		{URL: "https://www.spca.com/en/adoption/birds-for-adoption/", Category: "birds"},
		{URL: "https://www.spca.com/en/adoption/small-animals-for-adoption/", Category: "small-animals"},
	}
}

// DefaultCardSelectors matches the adoption listing markup.
func DefaultCardSelectors() CardSelectors {
	return CardSelectors{
		Container:     "div.pet--row",
		Card:          "div.single--card.pet--card",
		Link:          "a.card--link",
		Name:          "h5.card--title",
		Info:          "div.pet--infos",
		Thumbnail:     "div.card--image img",
		InfoSeparator: defaultInfoSeparator,
	}
}

// DefaultRules returns the site's URL categories. Listing pages are skipped
// because their records are enumerated by the listing discoverer.
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{
			Category: "ignored",
			Action:   ActionSkip,
			Patterns: []string{
				`(?i)\.(pdf|jpg|jpeg|png|gif|mp4|mp3|doc|docx|xls|xlsx)$`,
				`/wp-content/`, `/wp-admin/`, `/calendar/`, `/feed/`,
				`/cart/`, `/checkout/`, `/my-account/`,
			},
		},
		{
			Category: "animal",
			Action:   ActionRecord,
			Patterns: []string{`/en/animal/[\w-]+-\d+/?$`, `/fr/animal/[\w-]+-\d+/?$`},
		},
		{
			Category: "adoption_list",
			Action:   ActionSkip,
			Patterns: []string{`/en/adoption/[\w-]+-for-adoption/?`, `/fr/adoption/[\w-]+-a-adopter/?`},
		},
		{
			Category: "service",
			Action:   ActionContent,
			Patterns: []string{`/en/services/`, `/fr/services/`},
		},
		{
			Category: "tips",
			Action:   ActionContent,
			Patterns: []string{`/en/tips-and-advice/`, `/fr/conseils/`},
		},
	}
}

// WithDefaults returns a copy of the config with defaults for zero-value fields.
func (c Config) WithDefaults() Config {
	if len(c.Listings) == 0 {
		c.Listings = DefaultListings()
	}
	if c.SitemapURL == "" {
		c.SitemapURL = defaultSitemapURL
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.MaxSitemaps <= 0 {
		c.MaxSitemaps = defaultMaxSitemaps
	}
	if c.Cards == (CardSelectors{}) {
		c.Cards = DefaultCardSelectors()
	}
	if c.Cards.InfoSeparator == "" {
		c.Cards.InfoSeparator = defaultInfoSeparator
	}
	if len(c.Rules) == 0 {
		c.Rules = DefaultRules()
	}
	if c.DefaultCategory == "" {
		c.DefaultCategory = defaultCategoryFallback
	}
	return c
}

// kindFor maps a rule action to the URL kind it feeds.
func kindFor(action string) (domain.URLKind, bool) {
	switch action {
	case ActionRecord:
		return domain.URLKindRecord, true
	case ActionContent:
		return domain.URLKindContent, true
	default:
		return "", false
	}
}
