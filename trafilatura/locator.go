// Package trafilatura provides the readability-based fallback content
// locator used when the extractor's selector list finds no main
// content subtree.
package trafilatura

import (
	"bytes"

	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"

	"github.com/docdex/docdex"
	"github.com/docdex/docdex/goquery"
)

// Ensure Locator implements goquery.ContentLocator at compile time.
var _ goquery.ContentLocator = (*Locator)(nil)

// Locator wraps go-trafilatura's boilerplate removal to find the main
// content node of arbitrary HTML.
type Locator struct{}

// NewLocator creates a new Locator.
func NewLocator() *Locator {
	return &Locator{}
}

// Locate returns the main content node and the detected page title.
func (l *Locator) Locate(rawHTML []byte) (*html.Node, string, error) {
	if len(rawHTML) == 0 {
		return nil, "", docdex.Errorf(docdex.EINVALID, "empty HTML input")
	}

	opts := trafilatura.Options{
		EnableFallback: true,
	}

	result, err := trafilatura.Extract(bytes.NewReader(rawHTML), opts)
	if err != nil {
		return nil, "", err
	}

	return result.ContentNode, result.Metadata.Title, nil
}
