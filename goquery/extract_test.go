package goquery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdex/docdex"
	"github.com/docdex/docdex/goquery"
	"github.com/docdex/docdex/htmltomarkdown"
)

// extract runs the extractor with the real markdown converter.
func extract(t *testing.T, pageURL, baseURL, html string) *docdex.PageDoc {
	t.Helper()

	e := goquery.NewExtractor(htmltomarkdown.NewConverter())
	doc, err := e.Extract(pageURL, baseURL, []byte(html))
	require.NoError(t, err)
	return doc
}

func TestExtractor_Extract_title_and_blocks(t *testing.T) {
	t.Parallel()

	doc := extract(t, "https://a.com/docs/page.html", "https://a.com/docs/", `
		<html>
		<head><title>Install Guide</title></head>
		<body>
			<nav><a href="/docs/other.html">Other</a></nav>
			<main>
				<h1>Installation</h1>
				<p>Run the installer.</p>
				<h2>Linux</h2>
				<p>Use the package manager.</p>
			</main>
			<footer>Copyright</footer>
		</body>
		</html>`)

	assert.Equal(t, "Install Guide", doc.Title)
	require.Len(t, doc.Blocks, 2)

	assert.Equal(t, []string{"Installation"}, doc.Blocks[0].HeadingPath)
	assert.Contains(t, doc.Blocks[0].Text, "Run the installer.")

	assert.Equal(t, []string{"Installation", "Linux"}, doc.Blocks[1].HeadingPath)
	assert.Contains(t, doc.Blocks[1].Text, "package manager")
}

func TestExtractor_Extract_heading_outline_rules(t *testing.T) {
	t.Parallel()

	doc := extract(t, "https://a.com/docs/p", "https://a.com/docs/", `
		<html><body><main>
			<h1>API</h1>
			<h2>Auth</h2>
			<p>auth text</p>
			<h3>Tokens</h3>
			<p>token text</p>
			<h2>Errors</h2>
			<p>error text</p>
		</main></body></html>`)

	require.Len(t, doc.Blocks, 3)
	assert.Equal(t, []string{"API", "Auth"}, doc.Blocks[0].HeadingPath)
	assert.Equal(t, []string{"API", "Auth", "Tokens"}, doc.Blocks[1].HeadingPath)
	assert.Equal(t, []string{"API", "Errors"}, doc.Blocks[2].HeadingPath,
		"a sibling h2 closes the h3 level")
}

func TestExtractor_Extract_code_blocks(t *testing.T) {
	t.Parallel()

	doc := extract(t, "https://a.com/docs/p", "https://a.com/docs/", `
		<html><body><main>
			<h1>Usage</h1>
			<pre><code class="language-go">func main() {
	fmt.Println("hi")
}</code></pre>
		</main></body></html>`)

	require.Len(t, doc.Blocks, 1)
	block := doc.Blocks[0]
	assert.True(t, block.IsCode)
	assert.Equal(t, "go", block.Language)
	assert.Contains(t, block.Text, "\tfmt.Println(\"hi\")", "code whitespace is preserved verbatim")
}

func TestExtractor_Extract_links(t *testing.T) {
	t.Parallel()

	t.Run("keeps only in-scope document links", func(t *testing.T) {
		t.Parallel()

		doc := extract(t, "https://a.com/docs/index.html", "https://a.com/docs/", `
			<html><body><main>
				<a href="a.html">A</a>
				<a href="/docs/b.html">B</a>
				<a href="https://a.com/docs/c.html#section">C</a>
				<a href="https://other.com/docs/x.html">external</a>
				<a href="/blog/post.html">off-scope</a>
				<a href="logo.png">asset</a>
				<a href="mailto:docs@a.com">mail</a>
			</main></body></html>`)

		assert.Equal(t, []string{
			"https://a.com/docs/a.html",
			"https://a.com/docs/b.html",
			"https://a.com/docs/c.html",
		}, doc.Links)
	})

	t.Run("includes navigation links even though nav content is stripped", func(t *testing.T) {
		t.Parallel()

		doc := extract(t, "https://a.com/docs/index.html", "https://a.com/docs/", `
			<html><body>
				<nav><a href="guide.html">Guide</a></nav>
				<main><p>content</p></main>
			</body></html>`)

		assert.Equal(t, []string{"https://a.com/docs/guide.html"}, doc.Links)
		require.Len(t, doc.Blocks, 1)
		assert.NotContains(t, doc.Blocks[0].Text, "Guide")
	})

	t.Run("deduplicates fragment variants", func(t *testing.T) {
		t.Parallel()

		doc := extract(t, "https://a.com/docs/index.html", "https://a.com/docs/", `
			<html><body><main>
				<a href="a.html#one">A1</a>
				<a href="a.html#two">A2</a>
			</main></body></html>`)

		assert.Equal(t, []string{"https://a.com/docs/a.html"}, doc.Links)
	})
}

func TestExtractor_Extract_falls_back_to_body(t *testing.T) {
	t.Parallel()

	doc := extract(t, "https://a.com/docs/p", "https://a.com/docs/", `
		<html><body>
			<h1>Bare Page</h1>
			<p>No main element here.</p>
		</body></html>`)

	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, []string{"Bare Page"}, doc.Blocks[0].HeadingPath)
}

func TestExtractor_Extract_recovers_from_malformed_markup(t *testing.T) {
	t.Parallel()

	doc := extract(t, "https://a.com/docs/p", "https://a.com/docs/", `
		<html><body><main><h1>Broken<p>unclosed paragraph<div><span>text`)

	assert.NotEmpty(t, doc.Blocks)
}

func TestExtractor_Extract_normalizes_whitespace(t *testing.T) {
	t.Parallel()

	doc := extract(t, "https://a.com/docs/p", "https://a.com/docs/", `
		<html><body><main>
			<h1>Spacing</h1>
			<p>lots    of		whitespace   here</p>
		</main></body></html>`)

	require.Len(t, doc.Blocks, 1)
	assert.Contains(t, doc.Blocks[0].Text, "lots of whitespace here")
}
