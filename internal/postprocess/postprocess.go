// Package postprocess turns raw model output into placement-ready text.
// Generated content arrives wrapped in conversational framing, markdown
// fences, and the occasional duplicated block; the processor strips all of
// that while guaranteeing that real newlines and indentation survive and
// that non-empty input never cleans down to nothing.
package postprocess

import (
	"strings"

	"go.uber.org/zap"

	"aura/internal/types"
)

// maxStripPasses bounds the prefix/suffix stripping loop. Nested adornments
// ("Here is the code:" around a fence around the code) need more than one
// pass; three is enough for everything observed in practice.
const maxStripPasses = 3

// Processor cleans generated artifacts by content type.
type Processor struct {
	logger *zap.Logger
}

// New creates a processor. The logger may be zap.NewNop().
func New(logger *zap.Logger) *Processor {
	return &Processor{logger: logger}
}

// Process cleans raw content for placement. promptHint is the user's
// original request, consulted only for language detection (JS/HTML/CSS get
// two-space indentation). The result is never empty when raw is non-empty.
func (p *Processor) Process(raw string, ct types.ContentType, promptHint string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}

	// Markdown headings are framing for prose but comments in code; a
	// leading "# fibonacci" must survive the CODE path.
	dropHeadings := ct != types.ContentCode

	out := raw
	for pass := 0; pass < maxStripPasses; pass++ {
		next := stripAdornments(out, dropHeadings)
		if next == out {
			break
		}
		out = next
	}

	switch ct {
	case types.ContentCode:
		out = stripFences(out)
		out = retab(out, indentWidth(promptHint))
		out = expandCollapsed(out)
	case types.ContentText:
		out = normalizeParagraphs(out)
	}

	out = dedupeAdjacentBlocks(out)
	out = finalCleanup(out)

	if strings.TrimSpace(out) == "" {
		p.logger.Warn("post-processing emptied content, keeping original",
			zap.String("content_type", string(ct)),
			zap.Int("raw_len", len(raw)))
		return finalCleanup(raw)
	}
	return out
}

// unwantedPrefixes are conversational lead-ins the model adds before the
// artifact. Matched case-insensitively against whole leading lines.
var unwantedPrefixes = []string{
	"here is the code:",
	"here's the code:",
	"here is your code:",
	"here is the text:",
	"here's the text:",
	"here is the function:",
	"here you go:",
	"sure, here",
	"sure! here",
	"certainly",
	"of course",
}

// unwantedSuffixes are trailing help offers and sign-offs.
var unwantedSuffixes = []string{
	"end of code",
	"let me know if",
	"feel free to",
	"hope this helps",
	"is there anything else",
}

// stripAdornments removes one layer of leading/trailing conversational
// framing and, when dropHeadings is set, leading markdown headings. It
// never touches interior lines.
func stripAdornments(s string, dropHeadings bool) string {
	lines := strings.Split(s, "\n")

	start := 0
	for start < len(lines) {
		line := strings.TrimSpace(lines[start])
		if line == "" {
			start++
			continue
		}
		if dropHeadings && strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "#!") {
			start++
			continue
		}
		if hasAnyPrefixFold(line, unwantedPrefixes) {
			start++
			continue
		}
		break
	}

	end := len(lines)
	for end > start {
		line := strings.TrimSpace(lines[end-1])
		if line == "" {
			end--
			continue
		}
		if line == "```" || hasAnyPrefixFold(line, unwantedSuffixes) {
			end--
			continue
		}
		break
	}

	if start == 0 && end == len(lines) {
		return s
	}
	return strings.Join(lines[start:end], "\n")
}

func hasAnyPrefixFold(line string, prefixes []string) bool {
	lower := strings.ToLower(line)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// stripFences removes markdown code-fence lines anywhere in the content.
// Fence lines carry no payload; dropping them cannot lose code.
func stripFences(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// webLanguages are the prompt hints that select two-space indentation.
var webLanguages = []string{"javascript", "typescript", " js ", "html", "css", "jsx", "tsx"}

// indentWidth picks the tab replacement width from the user's phrasing.
func indentWidth(promptHint string) int {
	lower := " " + strings.ToLower(promptHint) + " "
	for _, lang := range webLanguages {
		if strings.Contains(lower, strings.TrimSpace(lang)) {
			return 2
		}
	}
	return 4
}

// retab converts leading tabs to spaces at the given width.
func retab(s string, width int) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	indent := strings.Repeat(" ", width)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		n := 0
		for n < len(line) && line[n] == '\t' {
			n++
		}
		if n > 0 {
			lines[i] = strings.Repeat(indent, n) + strings.ReplaceAll(line[n:], "\t", indent)
		} else {
			lines[i] = strings.ReplaceAll(line, "\t", indent)
		}
	}
	return strings.Join(lines, "\n")
}

// statementLeads open blocks in the languages we generate most; a colon
// after one of these mid-line marks a collapsed statement boundary.
var statementLeads = []string{"def ", "if ", "elif ", "else", "for ", "while ", "try", "except", "finally", "with ", "class "}

// expandCollapsed rewrites model output that arrived as one long line
// ("def f(x): if x: return 1 else: return 0") into properly indented
// statements. Content that already has newlines is left alone.
func expandCollapsed(s string) string {
	if strings.Contains(s, "\n") {
		return s
	}
	if countStatementMarkers(s) < 2 {
		return s
	}

	// Split on "; " first, then break before block keywords.
	parts := strings.Split(s, "; ")
	var stmts []string
	for _, part := range parts {
		stmts = append(stmts, splitBeforeKeywords(part)...)
	}

	var sb strings.Builder
	depth := 0
	for i, stmt := range stmts {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if isDedentKeyword(stmt) && depth > 0 {
			depth--
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Repeat("    ", depth))
		sb.WriteString(stmt)
		if strings.HasSuffix(stmt, ":") {
			depth++
		}
	}
	return sb.String()
}

func countStatementMarkers(s string) int {
	count := strings.Count(s, "; ")
	for _, lead := range statementLeads {
		idx := 0
		for {
			i := strings.Index(s[idx:], lead)
			if i < 0 {
				break
			}
			rest := s[idx+i:]
			if strings.Contains(rest, ":") {
				count++
			}
			idx += i + len(lead)
		}
	}
	return count
}

// splitBeforeKeywords breaks a run of collapsed statements before each
// block keyword, keeping "<keyword> ...:" together with its body clause.
func splitBeforeKeywords(s string) []string {
	var out []string
	rest := s
	for {
		best := -1
		for _, lead := range statementLeads {
			// Search past position 0 so the leading statement stays whole.
			if i := strings.Index(rest[1:], " "+lead); i >= 0 {
				pos := i + 1
				if best < 0 || pos < best {
					best = pos
				}
			}
		}
		if best < 0 {
			break
		}
		out = append(out, strings.TrimSpace(rest[:best]))
		rest = strings.TrimSpace(rest[best:])
	}
	out = append(out, strings.TrimSpace(rest))

	// Separate "<head>: <body>" so the body indents under the head.
	var final []string
	for _, stmt := range out {
		head, body, ok := splitHeadBody(stmt)
		if ok {
			final = append(final, head, body)
		} else {
			final = append(final, stmt)
		}
	}
	return final
}

// splitHeadBody splits "if x: return 1" into ("if x:", "return 1").
func splitHeadBody(stmt string) (head, body string, ok bool) {
	for _, lead := range statementLeads {
		if !strings.HasPrefix(stmt, lead) && stmt != strings.TrimSuffix(lead, " ") {
			continue
		}
		idx := strings.Index(stmt, ":")
		if idx < 0 || idx == len(stmt)-1 {
			return "", "", false
		}
		return stmt[:idx+1], strings.TrimSpace(stmt[idx+1:]), true
	}
	return "", "", false
}

func isDedentKeyword(stmt string) bool {
	for _, kw := range []string{"else", "elif ", "except", "finally"} {
		if strings.HasPrefix(stmt, kw) {
			return true
		}
	}
	return false
}

// normalizeParagraphs collapses runs of blank lines to a single separator.
func normalizeParagraphs(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// dedupeAdjacentBlocks drops a paragraph that exactly repeats the one
// before it, a failure mode of models that restate their own output.
func dedupeAdjacentBlocks(s string) string {
	blocks := strings.Split(s, "\n\n")
	if len(blocks) < 2 {
		return s
	}
	out := blocks[:1]
	for _, b := range blocks[1:] {
		if strings.TrimSpace(b) == strings.TrimSpace(out[len(out)-1]) && strings.TrimSpace(b) != "" {
			continue
		}
		out = append(out, b)
	}
	return strings.Join(out, "\n\n")
}

// finalCleanup trims trailing whitespace per line and normalizes the end of
// the content to exactly one newline.
func finalCleanup(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.Join(lines, "\n")
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return out
	}
	return out + "\n"
}
