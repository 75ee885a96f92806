package retailer

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Target is one of the closed set of supported grocery chains.
type Target string

const (
	Woolworths Target = "woolworths"
	Coles      Target = "coles"
)

// Parse maps a wire value onto a known Target.
func Parse(s string) (Target, error) {
	switch Target(strings.ToLower(strings.TrimSpace(s))) {
	case Woolworths:
		return Woolworths, nil
	case Coles:
		return Coles, nil
	default:
		return "", fmt.Errorf("unknown retailer: %q", s)
	}
}

// Profile carries the retailer-specific configuration the pipeline and the
// automation controller consume: hostname allow-list, recipe-page matcher,
// product-link selector patterns and the canonical recipe domains quoted to
// the model.
type Profile struct {
	Hosts            []string
	RecipePath       *regexp.Regexp
	ProductSelectors []string
	RecipeDomains    []string

	searchBase  string
	searchParam string
}

var profiles = map[Target]Profile{
	Woolworths: {
		Hosts:      []string{"woolworths.com.au"},
		RecipePath: regexp.MustCompile(`(?i)^/shop/recipes?/`),
		ProductSelectors: []string{
			`a[href*="/shop/productdetails/"]`,
			`a[href^="/shop/products/"]`,
		},
		RecipeDomains: []string{"www.woolworths.com.au/shop/recipes"},
		searchBase:    "https://www.woolworths.com.au/shop/search/products",
		searchParam:   "searchTerm",
	},
	Coles: {
		Hosts:      []string{"coles.com.au"},
		RecipePath: regexp.MustCompile(`(?i)^/recipes(-inspiration)?/`),
		ProductSelectors: []string{
			`a[href*="/product/"]`,
			`a[data-testid="product-tile"][href]`,
		},
		RecipeDomains: []string{"www.coles.com.au/recipes-inspiration"},
		searchBase:    "https://www.coles.com.au/search",
		searchParam:   "q",
	},
}

func (t Target) Profile() Profile {
	return profiles[t]
}

// SearchURL builds the retailer's product-search page URL for a term.
func (t Target) SearchURL(term string) string {
	p := profiles[t]
	return p.searchBase + "?" + p.searchParam + "=" + url.QueryEscape(term)
}

// BaseURL is the canonical origin relative links resolve against.
func (t Target) BaseURL() string {
	return "https://www." + profiles[t].Hosts[0]
}

// AllowsHost reports whether host is the retailer's domain or a subdomain
// of it. The automation controller uses this to filter outbound navigation.
func (t Target) AllowsHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, allowed := range profiles[t].Hosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// IsRecipePath reports whether a URL path looks like one of the retailer's
// recipe detail pages.
func (t Target) IsRecipePath(path string) bool {
	re := profiles[t].RecipePath
	return re != nil && re.MatchString(path)
}
