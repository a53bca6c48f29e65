package goquery

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/docdex/docdex"
)

// blockTags are container elements emitted as single prose blocks.
var blockTags = map[string]bool{
	"p": true, "ul": true, "ol": true, "dl": true,
	"table": true, "blockquote": true,
}

// heading is one open level on the outline stack.
type heading struct {
	level int
	title string
}

// walker accumulates blocks from a content subtree, tracking the
// heading path per standard outline rules: each h1..h6 replaces all
// open levels at or below its own.
type walker struct {
	converter docdex.Converter
	stack     []heading
	blocks    []docdex.Block
}

// walk visits node depth-first, emitting blocks as containers are
// encountered. Handled containers are not descended into.
func (w *walker) walk(node *html.Node) {
	if node == nil {
		return
	}

	if node.Type == html.ElementNode {
		tag := node.Data
		switch {
		case headingLevel(tag) > 0:
			w.openHeading(headingLevel(tag), nodeText(node))
			return
		case tag == "pre":
			w.emitCode(node)
			return
		case blockTags[tag]:
			w.emitProse(node)
			return
		}
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		w.walk(child)
	}
}

// openHeading replaces outline levels at or below level with title.
func (w *walker) openHeading(level int, title string) {
	title = normalizeText(title)
	if title == "" {
		return
	}
	for len(w.stack) > 0 && w.stack[len(w.stack)-1].level >= level {
		w.stack = w.stack[:len(w.stack)-1]
	}
	w.stack = append(w.stack, heading{level: level, title: title})
}

// headingPath snapshots the current breadcrumb.
func (w *walker) headingPath() []string {
	if len(w.stack) == 0 {
		return nil
	}
	path := make([]string, len(w.stack))
	for i, h := range w.stack {
		path[i] = h.title
	}
	return path
}

// emitCode emits a pre element as an atomic code block with whitespace
// preserved verbatim.
func (w *walker) emitCode(node *html.Node) {
	text := nodeText(node)
	if strings.TrimSpace(text) == "" {
		return
	}
	w.blocks = append(w.blocks, docdex.Block{
		HeadingPath: w.headingPath(),
		Text:        strings.Trim(text, "\n"),
		IsCode:      true,
		Language:    codeLanguage(node),
	})
}

// emitProse emits a container element as a markdown prose block.
func (w *walker) emitProse(node *html.Node) {
	text := w.renderMarkdown(node)
	if strings.TrimSpace(text) == "" {
		return
	}
	w.blocks = append(w.blocks, docdex.Block{
		HeadingPath: w.headingPath(),
		Text:        text,
	})
}

// renderMarkdown converts the node's HTML through the converter,
// degrading to normalized plain text when conversion fails.
func (w *walker) renderMarkdown(node *html.Node) string {
	if w.converter != nil {
		var buf bytes.Buffer
		if err := html.Render(&buf, node); err == nil {
			if md, err := w.converter.Convert(buf.String()); err == nil {
				return normalizeText(md)
			}
		}
	}
	return normalizeText(nodeText(node))
}

// headingLevel returns 1..6 for h1..h6 tags, 0 otherwise.
func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// codeLanguage finds a language-* class hint on the pre element or a
// descendant code element.
func codeLanguage(node *html.Node) string {
	if lang := languageFromClass(node); lang != "" {
		return lang
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == "code" {
			if lang := languageFromClass(child); lang != "" {
				return lang
			}
		}
	}
	return ""
}

// languageFromClass scans class attributes for language-* or lang-*.
func languageFromClass(node *html.Node) string {
	for _, attr := range node.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, class := range strings.Fields(attr.Val) {
			if lang, ok := strings.CutPrefix(class, "language-"); ok {
				return lang
			}
			if lang, ok := strings.CutPrefix(class, "lang-"); ok {
				return lang
			}
		}
	}
	return ""
}

// nodeText returns the concatenated text content of node.
func nodeText(node *html.Node) string {
	var sb strings.Builder
	collectText(node, &sb)
	return sb.String()
}

func collectText(node *html.Node, sb *strings.Builder) {
	if node.Type == html.TextNode {
		sb.WriteString(node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, sb)
	}
}

var (
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// normalizeText NFC-normalizes Unicode and collapses whitespace runs.
// Applied to prose and headings only; code text is preserved verbatim.
func normalizeText(s string) string {
	s = norm.NFC.String(s)
	s = spaceRuns.ReplaceAllString(s, " ")
	s = newlineRuns.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
