// Package chunk splits extracted pages into token-bounded,
// heading-aware chunks ready for embedding. Code blocks are never
// split; each chunk carries its page title and heading breadcrumb so
// the embedded text encodes its semantic location.
package chunk

import (
	"math"
	"regexp"
	"strings"

	"github.com/docdex/docdex"
)

// Default chunking parameters, in estimated tokens.
const (
	DefaultTargetTokens  = 650
	DefaultMinTokens     = 100
	DefaultMaxTokens     = 1000
	DefaultOverlapTokens = 50
)

// tokensPerWord is the estimator's ratio; dividing a token budget by
// it converts back into words.
const tokensPerWord = 1.3

// Ensure Chunker implements docdex.Chunker at compile time.
var _ docdex.Chunker = (*Chunker)(nil)

// Chunker implements docdex.Chunker. The zero value is not usable; use
// NewChunker.
type Chunker struct {
	target  int
	min     int
	max     int
	overlap int
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithLimits overrides the token bounds.
func WithLimits(target, min, max int) ChunkerOption {
	return func(c *Chunker) {
		c.target = target
		c.min = min
		c.max = max
	}
}

// WithOverlap overrides the overlap token count shared between
// adjacent chunks.
func WithOverlap(tokens int) ChunkerOption {
	return func(c *Chunker) {
		c.overlap = tokens
	}
}

// NewChunker creates a Chunker with the default parameters.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		target:  DefaultTargetTokens,
		min:     DefaultMinTokens,
		max:     DefaultMaxTokens,
		overlap: DefaultOverlapTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EstimateTokens is the canonical token estimator used end-to-end:
// whitespace-separated words times 1.3, rounded up.
func EstimateTokens(s string) int {
	words := len(strings.Fields(s))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) * tokensPerWord))
}

// section is a run of consecutive blocks sharing a heading path.
type section struct {
	path   []string
	blocks []docdex.Block
	tokens int
}

// parent returns the section's parent heading path as a joined key.
func (s *section) parent() string {
	if len(s.path) == 0 {
		return ""
	}
	return strings.Join(s.path[:len(s.path)-1], " > ")
}

// Chunk splits doc into ordered, contextualized chunks. The same
// PageDoc always yields the same sequence.
func (c *Chunker) Chunk(doc *docdex.PageDoc) []docdex.ContentChunk {
	sections := groupSections(doc.Blocks)
	sections = c.mergeUndersized(sections)

	var chunks []docdex.ContentChunk
	var prevBody string

	emit := func(path []string, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}

		// Adjacent chunks share the prior chunk's trailing tokens,
		// excluding its context prefix.
		if prevBody != "" && c.overlap > 0 {
			if tail := trailingWords(prevBody, c.overlap); tail != "" {
				body = tail + "\n\n" + body
			}
		}

		breadcrumb := breadcrumbFor(doc.Title, path)
		content := body
		if breadcrumb != "" {
			content = breadcrumb + "\n\n" + body
		}

		chunks = append(chunks, docdex.ContentChunk{
			Content:     content,
			PageTitle:   doc.Title,
			HeadingPath: breadcrumb,
			TokenCount:  EstimateTokens(content),
			ChunkIndex:  len(chunks),
		})
		prevBody = body
	}

	for _, sec := range sections {
		if sec.tokens <= c.max {
			emit(sec.path, joinBlocks(sec.blocks))
			continue
		}
		for _, body := range c.splitSection(sec) {
			emit(sec.path, body)
		}
	}

	return chunks
}

// groupSections groups consecutive blocks by heading path; every
// heading change starts a new section.
func groupSections(blocks []docdex.Block) []section {
	var sections []section
	for _, block := range blocks {
		key := strings.Join(block.HeadingPath, " > ")
		if len(sections) == 0 || strings.Join(sections[len(sections)-1].path, " > ") != key {
			sections = append(sections, section{path: block.HeadingPath})
		}
		last := &sections[len(sections)-1]
		last.blocks = append(last.blocks, block)
		last.tokens += EstimateTokens(block.Text)
	}
	return sections
}

// mergeUndersized merges sections below the minimum into their next
// sibling while the parent heading stays the same.
func (c *Chunker) mergeUndersized(sections []section) []section {
	var merged []section
	for _, sec := range sections {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.tokens < c.min && last.parent() == sec.parent() {
				last.blocks = append(last.blocks, sec.blocks...)
				last.tokens += sec.tokens
				continue
			}
		}
		merged = append(merged, sec)
	}
	return merged
}

// splitSection splits an oversized section into bodies within the max
// bound, packing whole blocks toward the target and never splitting a
// code block.
func (c *Chunker) splitSection(sec section) []string {
	var bodies []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			bodies = append(bodies, strings.Join(current, "\n\n"))
			current = nil
			currentTokens = 0
		}
	}

	for _, block := range sec.blocks {
		tokens := EstimateTokens(block.Text)

		if tokens > c.max {
			if block.IsCode {
				// An oversized code block is emitted whole regardless
				// of the ceiling.
				flush()
				bodies = append(bodies, block.Text)
				continue
			}
			flush()
			bodies = append(bodies, c.splitText(block.Text)...)
			continue
		}

		if currentTokens > 0 && currentTokens+tokens > c.target {
			flush()
		}
		current = append(current, block.Text)
		currentTokens += tokens
	}
	flush()

	return bodies
}

var sentenceBoundary = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)

// splitText splits oversized prose on paragraph boundaries, then
// sentence boundaries, then whitespace word boundaries.
func (c *Chunker) splitText(text string) []string {
	paragraphs := strings.Split(text, "\n\n")
	var pieces []string
	for _, p := range paragraphs {
		if EstimateTokens(p) <= c.max {
			pieces = append(pieces, p)
			continue
		}
		for _, s := range splitSentences(p) {
			if EstimateTokens(s) <= c.max {
				pieces = append(pieces, s)
				continue
			}
			pieces = append(pieces, c.splitWords(s)...)
		}
	}
	return packPieces(pieces, c.target)
}

// splitSentences breaks a paragraph on terminal punctuation.
func splitSentences(p string) []string {
	matches := sentenceBoundary.FindAllStringSubmatch(p, -1)
	if len(matches) == 0 {
		return []string{p}
	}
	sentences := make([]string, 0, len(matches))
	consumed := 0
	for _, m := range matches {
		sentences = append(sentences, strings.TrimSpace(m[1]))
		consumed += len(m[0])
	}
	if rest := strings.TrimSpace(p[consumed:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// splitWords breaks text into target-sized word windows.
func (c *Chunker) splitWords(text string) []string {
	words := strings.Fields(text)
	perPiece := int(float64(c.target) / tokensPerWord)
	if perPiece < 1 {
		perPiece = 1
	}

	var pieces []string
	for start := 0; start < len(words); start += perPiece {
		end := start + perPiece
		if end > len(words) {
			end = len(words)
		}
		pieces = append(pieces, strings.Join(words[start:end], " "))
	}
	return pieces
}

// packPieces greedily joins pieces into bodies near the target size.
func packPieces(pieces []string, target int) []string {
	var bodies []string
	var current []string
	currentTokens := 0

	for _, piece := range pieces {
		tokens := EstimateTokens(piece)
		if currentTokens > 0 && currentTokens+tokens > target {
			bodies = append(bodies, strings.Join(current, "\n\n"))
			current = nil
			currentTokens = 0
		}
		current = append(current, piece)
		currentTokens += tokens
	}
	if len(current) > 0 {
		bodies = append(bodies, strings.Join(current, "\n\n"))
	}
	return bodies
}

// joinBlocks joins a section's block texts with blank lines.
func joinBlocks(blocks []docdex.Block) string {
	texts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if strings.TrimSpace(b.Text) != "" {
			texts = append(texts, b.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}

// breadcrumbFor builds the "Page Title > Section > Sub" context line.
func breadcrumbFor(title string, path []string) string {
	parts := make([]string, 0, len(path)+1)
	if title != "" {
		parts = append(parts, title)
	}
	for _, p := range path {
		// The page title often repeats as the first h1.
		if len(parts) > 0 && parts[len(parts)-1] == p {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " > ")
}

// trailingWords returns the last words of body amounting to roughly
// tokens estimated tokens.
func trailingWords(body string, tokens int) string {
	words := strings.Fields(body)
	n := int(float64(tokens) / tokensPerWord)
	if n <= 0 || len(words) == 0 {
		return ""
	}
	if n >= len(words) {
		return strings.Join(words, " ")
	}
	return strings.Join(words[len(words)-n:], " ")
}
