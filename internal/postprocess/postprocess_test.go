package postprocess

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aura/internal/types"
)

func newProcessor() *Processor {
	return New(zap.NewNop())
}

func TestProcessStripsConversationalFraming(t *testing.T) {
	p := newProcessor()

	raw := "Here is the code:\n```python\ndef add(a, b):\n    return a + b\n```\nHope this helps!"
	got := p.Process(raw, types.ContentCode, "write me a python function")

	assert.Equal(t, "def add(a, b):\n    return a + b\n", got)
}

func TestProcessNestedAdornments(t *testing.T) {
	p := newProcessor()

	raw := "Sure, here you go:\n```\nprint('hi')\n```\nLet me know if you need changes."
	got := p.Process(raw, types.ContentCode, "")

	assert.Equal(t, "print('hi')\n", got)

	// Headings count as framing for prose but not for code, where a
	// leading "# comment" is real content.
	raw = "# Meeting Notes\nThe meeting is at noon."
	assert.Equal(t, "The meeting is at noon.\n", p.Process(raw, types.ContentText, ""))
}

func TestProcessPreservesIndentation(t *testing.T) {
	p := newProcessor()

	raw := "```python\ndef fib(n):\n    if n < 2:\n        return n\n    return fib(n-1) + fib(n-2)\n```"
	got := p.Process(raw, types.ContentCode, "fibonacci in python")

	require.Contains(t, got, "    if n < 2:")
	require.Contains(t, got, "        return n")
}

func TestProcessRetabsCode(t *testing.T) {
	p := newProcessor()

	got := p.Process("def f():\n\treturn 1", types.ContentCode, "python")
	assert.Equal(t, "def f():\n    return 1\n", got)

	// Web languages indent with two spaces.
	got = p.Process("function f() {\n\treturn 1;\n}", types.ContentCode, "a javascript function")
	assert.Equal(t, "function f() {\n  return 1;\n}\n", got)
}

func TestProcessExpandsCollapsedCode(t *testing.T) {
	p := newProcessor()

	raw := "def f(x): if x > 0: return x; else: return -x"
	got := p.Process(raw, types.ContentCode, "python abs")

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	require.Greater(t, len(lines), 1, "collapsed code should expand to multiple lines")
	assert.Equal(t, "def f(x):", lines[0])
	for _, line := range lines[1:] {
		assert.True(t, strings.HasPrefix(line, "    "), "body lines should be indented: %q", line)
	}
}

func TestProcessLeavesMultilineCodeAlone(t *testing.T) {
	p := newProcessor()

	raw := "x = 1\ny = 2\n"
	assert.Equal(t, raw, p.Process(raw, types.ContentCode, ""))
}

func TestProcessNormalizesTextParagraphs(t *testing.T) {
	p := newProcessor()

	raw := "First paragraph.\n\n\n\nSecond paragraph.\n\n\nThird."
	got := p.Process(raw, types.ContentText, "")

	assert.Equal(t, "First paragraph.\n\nSecond paragraph.\n\nThird.\n", got)
}

func TestProcessDeduplicatesRepeatedBlocks(t *testing.T) {
	p := newProcessor()

	raw := "The meeting is at noon.\n\nThe meeting is at noon.\n\nBring the slides."
	got := p.Process(raw, types.ContentText, "")

	assert.Equal(t, 1, strings.Count(got, "The meeting is at noon."))
	assert.Contains(t, got, "Bring the slides.")
}

func TestProcessNeverReturnsEmptyForNonEmptyInput(t *testing.T) {
	p := newProcessor()

	// Input that the stripper would otherwise consume entirely.
	raw := "Hope this helps!"
	got := p.Process(raw, types.ContentText, "")
	assert.NotEmpty(t, strings.TrimSpace(got))

	raw = "```\n```"
	got = p.Process(raw, types.ContentCode, "")
	assert.NotEmpty(t, strings.TrimSpace(got))
}

func TestProcessTrailingWhitespace(t *testing.T) {
	p := newProcessor()

	got := p.Process("line one   \nline two\t\n\n\n", types.ContentText, "")
	assert.Equal(t, "line one\nline two\n", got)
}

func TestProcessIdempotent(t *testing.T) {
	p := newProcessor()

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200

	properties := gopter.NewProperties(params)

	contentTypes := []types.ContentType{types.ContentCode, types.ContentText, types.ContentOther}

	properties.Property("pp(pp(x)) == pp(x)", prop.ForAll(
		func(s string, ctIdx int) bool {
			ct := contentTypes[ctIdx%len(contentTypes)]
			once := p.Process(s, ct, "")
			twice := p.Process(once, ct, "")
			return once == twice
		},
		gen.AnyString(),
		gen.IntRange(0, 2),
	))

	properties.Property("non-empty in, non-empty out", prop.ForAll(
		func(s string, ctIdx int) bool {
			if strings.TrimSpace(s) == "" {
				return true
			}
			ct := contentTypes[ctIdx%len(contentTypes)]
			return p.Process(s, ct, "") != ""
		},
		gen.AnyString(),
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t)
}
