package htmltomarkdown_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdex/docdex"
	"github.com/docdex/docdex/htmltomarkdown"
)

func TestConverter_Convert(t *testing.T) {
	t.Parallel()

	t.Run("converts basic HTML to markdown", func(t *testing.T) {
		t.Parallel()

		c := htmltomarkdown.NewConverter()
		md, err := c.Convert(`<p>Use <strong>flags</strong> to configure <a href="https://a.com/docs/">docdex</a>.</p>`)
		require.NoError(t, err)
		assert.Contains(t, md, "**flags**")
		assert.Contains(t, md, "[docdex](https://a.com/docs/)")
	})

	t.Run("converts lists", func(t *testing.T) {
		t.Parallel()

		c := htmltomarkdown.NewConverter()
		md, err := c.Convert(`<ul><li>first</li><li>second</li></ul>`)
		require.NoError(t, err)
		assert.Contains(t, md, "- first")
		assert.Contains(t, md, "- second")
	})

	t.Run("rejects empty input", func(t *testing.T) {
		t.Parallel()

		c := htmltomarkdown.NewConverter()
		_, err := c.Convert("   ")
		require.Error(t, err)
		assert.Equal(t, docdex.EINVALID, docdex.ErrorCode(err))
	})
}
