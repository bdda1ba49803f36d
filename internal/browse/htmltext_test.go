package browse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTMLToTextDropsScriptAndStyle(t *testing.T) {
	raw := `<html><head><style>.x{color:red}</style></head>
<body><script>var x = 1;</script><p>Visible text.</p></body></html>`

	got := HTMLToText(raw)
	assert.Contains(t, got, "Visible text.")
	assert.NotContains(t, got, "color:red")
	assert.NotContains(t, got, "var x")
}

func TestHTMLToTextSeparatesBlocks(t *testing.T) {
	raw := `<body><h1>Title</h1><p>First paragraph.</p><p>Second paragraph.</p></body>`

	got := HTMLToText(raw)
	lines := strings.Split(got, "\n")
	assert.Equal(t, []string{"Title", "First paragraph.", "Second paragraph."}, lines)
}

func TestHTMLToTextJoinsInlineText(t *testing.T) {
	raw := `<p>Go to <a href="x">the settings page</a> and click save.</p>`

	got := HTMLToText(raw)
	assert.Equal(t, "Go to the settings page and click save.", got)
}

func TestHTMLToTextEmptyDocument(t *testing.T) {
	assert.Equal(t, "", HTMLToText(""))
	assert.Equal(t, "", HTMLToText("<html><head></head><body></body></html>"))
}
