package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/pelletier/go-toml/v2"

	"github.com/trawlkit/trawl/models"
)

// defaultNextVocabulary matches next-page controls by text or
// aria-label when a profile does not override it. Covers English and
// French listings plus the usual arrow glyphs.
var defaultNextVocabulary = []string{"next", "suivant", "prochain", "›", "»"}

// SelectorSet holds every CSS selector a profile needs. Card is the
// only required entry; empty selectors simply skip that field during
// extraction.
type SelectorSet struct {
	// Card matches one product tile in the listing.
	Card string `toml:"card"`

	// Per-field selectors, resolved relative to a card node.
	Name         string `toml:"name"`
	Brand        string `toml:"brand"`
	SKU          string `toml:"sku"`
	Price        string `toml:"price"`
	RegularPrice string `toml:"regular_price"`
	UnitPrice    string `toml:"unit_price"`
	UnitLabel    string `toml:"unit_label"`
	Link         string `toml:"link"`
	Image        string `toml:"image"`
	Category     string `toml:"category"`

	// Page-level selectors.
	Pagination   string `toml:"pagination"`
	Next         string `toml:"next"`
	PageLink     string `toml:"page_link"`
	ActivePage   string `toml:"active_page"`
	ResultsCount string `toml:"results_count"`
	EmptyState   string `toml:"empty_state"`
	Loader       string `toml:"loader"`
}

// SiteProfile describes one listing source: where to navigate, what to
// search for, and how to read the rendered page.
type SiteProfile struct {
	// Name identifies the source in records, logs, and file names.
	Name string `toml:"name"`

	// BaseURL is the listing URL template. "{query}" is replaced with
	// the escaped search term; an optional "{page}" placeholder takes
	// the page number.
	BaseURL string `toml:"base_url"`

	// PageParam is the query-string parameter used for direct page
	// navigation when BaseURL has no "{page}" placeholder.
	PageParam string `toml:"page_param"`

	// Queries is the ordered list of search-term variants. The first
	// variant that yields records wins.
	Queries []string `toml:"queries"`

	// MaxPages overrides the global page cap when > 0.
	MaxPages int `toml:"max_pages"`

	// NextVocabulary are the lowercase text/aria-label markers that
	// identify a next-page control.
	NextVocabulary []string `toml:"next_vocabulary"`

	Selectors SelectorSet `toml:"selectors"`
}

// catalogue is the top-level TOML document shape.
type catalogue struct {
	Profiles []SiteProfile `toml:"profiles"`
}

// LoadProfiles reads and validates the TOML profile catalogue.
// Any invalid profile fails the whole load with an INVALID_PROFILE
// error naming the offending profile and field.
func LoadProfiles(path string) ([]SiteProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeProfile, "read profile catalogue "+path, err)
	}

	var cat catalogue
	if err := toml.Unmarshal(data, &cat); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeProfile, "parse profile catalogue "+path, err)
	}
	if len(cat.Profiles) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeProfile, "profile catalogue "+path+" defines no profiles", nil)
	}

	seen := make(map[string]bool, len(cat.Profiles))
	for i := range cat.Profiles {
		p := &cat.Profiles[i]
		p.applyDefaults()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, models.NewScrapeError(models.ErrCodeProfile, "duplicate profile name "+p.Name, nil)
		}
		seen[p.Name] = true
	}
	return cat.Profiles, nil
}

func (p *SiteProfile) applyDefaults() {
	if len(p.NextVocabulary) == 0 {
		p.NextVocabulary = defaultNextVocabulary
	}
	if p.PageParam == "" && !strings.Contains(p.BaseURL, "{page}") {
		p.PageParam = "page"
	}
	for i, v := range p.NextVocabulary {
		p.NextVocabulary[i] = strings.ToLower(strings.TrimSpace(v))
	}
}

// Validate checks the profile's structural requirements and compiles
// every selector so a typo fails at load time, not mid-run.
func (p *SiteProfile) Validate() error {
	if p.Name == "" {
		return models.NewScrapeError(models.ErrCodeProfile, "profile missing name", nil)
	}
	if len(p.Queries) == 0 {
		return models.NewScrapeError(models.ErrCodeProfile, "profile "+p.Name+" defines no queries", nil)
	}

	u, err := url.Parse(strings.NewReplacer("{query}", "q", "{page}", "1").Replace(p.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return models.NewScrapeError(models.ErrCodeProfile,
			fmt.Sprintf("profile %s: base_url %q is not an absolute URL", p.Name, p.BaseURL), err)
	}
	if !strings.Contains(p.BaseURL, "{query}") {
		return models.NewScrapeError(models.ErrCodeProfile,
			"profile "+p.Name+": base_url missing {query} placeholder", nil)
	}

	if p.Selectors.Card == "" {
		return models.NewScrapeError(models.ErrCodeProfile, "profile "+p.Name+": selectors.card is required", nil)
	}
	for field, sel := range map[string]string{
		"card":          p.Selectors.Card,
		"name":          p.Selectors.Name,
		"brand":         p.Selectors.Brand,
		"sku":           p.Selectors.SKU,
		"price":         p.Selectors.Price,
		"regular_price": p.Selectors.RegularPrice,
		"unit_price":    p.Selectors.UnitPrice,
		"unit_label":    p.Selectors.UnitLabel,
		"link":          p.Selectors.Link,
		"image":         p.Selectors.Image,
		"category":      p.Selectors.Category,
		"pagination":    p.Selectors.Pagination,
		"next":          p.Selectors.Next,
		"page_link":     p.Selectors.PageLink,
		"active_page":   p.Selectors.ActivePage,
		"results_count": p.Selectors.ResultsCount,
		"empty_state":   p.Selectors.EmptyState,
		"loader":        p.Selectors.Loader,
	} {
		if sel == "" {
			continue
		}
		if _, err := cascadia.Parse(sel); err != nil {
			return models.NewScrapeError(models.ErrCodeProfile,
				fmt.Sprintf("profile %s: selectors.%s %q does not parse", p.Name, field, sel), err)
		}
	}
	return nil
}

// PageURL expands the base template for one query and page number.
// Page 1 keeps the canonical URL (no page marker) unless the template
// embeds a {page} placeholder.
func (p *SiteProfile) PageURL(query string, page int) string {
	base := strings.ReplaceAll(p.BaseURL, "{query}", url.QueryEscape(query))

	if strings.Contains(base, "{page}") {
		if page < 1 {
			page = 1
		}
		return strings.ReplaceAll(base, "{page}", strconv.Itoa(page))
	}

	if page <= 1 || p.PageParam == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set(p.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// Origin returns the scheme://host root of the base URL. Records whose
// card carried no link get a deterministic fallback address anchored
// here, so re-runs derive the same URL for the same product.
func (p *SiteProfile) Origin() string {
	u, err := url.Parse(strings.NewReplacer("{query}", "q", "{page}", "1").Replace(p.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
