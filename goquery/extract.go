// Package goquery provides the CSS-selector based implementation of
// docdex.Extractor. It locates the main content subtree, walks it into
// heading-aware prose and code blocks, and extracts in-scope outbound
// links.
package goquery

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/docdex/docdex"
)

// mainSelectors is the ordered list of selectors tried when locating
// the main content subtree, before falling back to the content locator
// and finally body.
var mainSelectors = []string{"main", "[role=main]", "article", ".content", "#content"}

// noiseSelector matches elements removed before content extraction.
const noiseSelector = "script, style, noscript, template, nav, footer, aside, [role=navigation]"

// assetExtensions is the denylist of non-document link targets.
var assetExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true,
	".ico": true, ".css": true, ".js": true, ".zip": true, ".pdf": true,
	".tar": true, ".gz": true, ".tgz": true, ".woff": true, ".woff2": true,
}

// ContentLocator finds the main content node when the selector list
// fails. The trafilatura package provides the implementation.
type ContentLocator interface {
	Locate(rawHTML []byte) (node *html.Node, title string, err error)
}

// Ensure Extractor implements docdex.Extractor at compile time.
var _ docdex.Extractor = (*Extractor)(nil)

// Extractor implements docdex.Extractor with goquery.
type Extractor struct {
	converter docdex.Converter
	fallback  ContentLocator
	keepAside bool
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithFallback sets the content locator consulted when no selector in
// the main list matches.
func WithFallback(locator ContentLocator) ExtractorOption {
	return func(e *Extractor) {
		e.fallback = locator
	}
}

// WithKeepAside retains aside elements instead of stripping them.
func WithKeepAside() ExtractorOption {
	return func(e *Extractor) {
		e.keepAside = true
	}
}

// NewExtractor creates an Extractor. Prose block HTML is converted to
// markdown through converter.
func NewExtractor(converter docdex.Converter, opts ...ExtractorOption) *Extractor {
	e := &Extractor{converter: converter}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses rawHTML leniently and returns the page's blocks,
// heading structure, and in-scope links.
func (e *Extractor) Extract(pageURL, baseURL string, rawHTML []byte) (*docdex.PageDoc, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		return nil, docdex.Errorf(docdex.EINVALID, "failed to parse HTML: %v", err)
	}

	title := pageTitle(doc)

	// Links come from the full document: navigation links drive BFS
	// discovery even though they are noise for content.
	links, err := extractLinks(doc, pageURL, baseURL)
	if err != nil {
		return nil, err
	}

	noise := noiseSelector
	if e.keepAside {
		noise = strings.ReplaceAll(noise, ", aside", "")
	}
	doc.Find(noise).Remove()

	content := e.locateContent(doc, rawHTML, &title)

	var blocks []docdex.Block
	if content != nil {
		w := &walker{converter: e.converter}
		for _, node := range content.Nodes {
			w.walk(node)
		}
		blocks = w.blocks
	}

	return &docdex.PageDoc{
		URL:    pageURL,
		Title:  title,
		Blocks: blocks,
		Links:  links,
	}, nil
}

// locateContent tries the selector list, then the fallback locator,
// then body.
func (e *Extractor) locateContent(doc *goquery.Document, rawHTML []byte, title *string) *goquery.Selection {
	for _, sel := range mainSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}

	if e.fallback != nil {
		if node, fbTitle, err := e.fallback.Locate(rawHTML); err == nil && node != nil {
			if *title == "" && fbTitle != "" {
				*title = fbTitle
			}
			return goquery.NewDocumentFromNode(node).Selection
		}
	}

	return doc.Find("body").First()
}

// pageTitle extracts the page title, preferring <title> and falling
// back to the first h1.
func pageTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// extractLinks returns resolved, fragment-stripped hrefs whose form
// begins with baseURL, with asset extensions excluded. Order follows
// first occurrence in the document.
func extractLinks(doc *goquery.Document, pageURL, baseURL string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, docdex.Errorf(docdex.EINVALID, "invalid page URL: %v", err)
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists || href == "" || isNonHTTPLink(href) {
			return
		}

		resolved := resolveURL(base, href)
		if resolved == "" || seen[resolved] {
			return
		}
		if !strings.HasPrefix(resolved, baseURL) {
			return
		}
		if hasAssetExtension(resolved) {
			return
		}

		seen[resolved] = true
		links = append(links, resolved)
	})

	return links, nil
}

// resolveURL resolves a relative href against the page URL, stripping
// fragments. Returns empty string for unparsable or self-referential
// links.
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""

	result := resolved.String()
	stripped := *base
	stripped.Fragment = ""
	if result == stripped.String() {
		return ""
	}
	return result
}

// isNonHTTPLink reports whether href uses a scheme we never follow.
func isNonHTTPLink(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:")
}

// hasAssetExtension reports whether the URL path ends in a non-document
// asset extension.
func hasAssetExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return assetExtensions[path[idx:]]
	}
	return false
}
