// Package resolve extracts product detail links from rendered retailer
// search pages.
package resolve

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/grocerly/cartbridge/internal/retailer"
)

// ProductURL scans rendered HTML for the first plausible product-detail link
// using the retailer's ordered selector patterns. The first match in document
// order wins. Relative hrefs are resolved against baseURL; if resolution
// fails the raw href is returned as-is so a partially useful result still
// reaches the caller. ok is false when nothing matched, which is a normal
// outcome for absent products.
func ProductURL(target retailer.Target, baseURL, html string) (productURL string, ok bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	for _, selector := range target.Profile().ProductSelectors {
		href, found := firstHref(doc, selector)
		if !found {
			continue
		}
		return absolutize(baseURL, href), true
	}
	return "", false
}

func firstHref(doc *goquery.Document, selector string) (string, bool) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	href, exists := sel.Attr("href")
	href = strings.TrimSpace(href)
	if !exists || href == "" {
		return "", false
	}
	return href, true
}

func absolutize(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
