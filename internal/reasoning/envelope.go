package reasoning

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// ENVELOPE PARSER - Normalizing Model Reply Shapes
// =============================================================================
// Providers and proxies disagree about how a chat reply is wrapped. The same
// logical answer arrives as an OpenAI completions envelope, as a bare
// {"message": ...} or {"response": ...} object, or as plain text, sometimes
// inside a markdown fence. Everything downstream works with Envelope and
// never sees the raw wire shape.

// ParseMethod records which strategy recovered the reply text.
type ParseMethod string

const (
	ParseDirect   ParseMethod = "json"
	ParseFenced   ParseMethod = "json_markdown"
	ParseEmbedded ParseMethod = "json_extracted"
	ParseRaw      ParseMethod = "raw"
)

// Envelope is a normalized model reply.
type Envelope struct {
	// Text is the reply content with any wrapping removed.
	Text string

	// Method is the parse strategy that produced Text.
	Method ParseMethod

	// Confidence reflects how certain the parse is; direct envelope hits
	// are 1.0, the raw fallback is 0.5.
	Confidence float64
}

// ParserStats tracks parsing statistics for monitoring.
type ParserStats struct {
	TotalProcessed int
	DirectParses   int
	FencedParses   int
	EmbeddedParses int
	RawFallbacks   int
}

// EnvelopeParser extracts reply text from raw model output. Instances are
// not safe for concurrent use; each consumer owns one.
type EnvelopeParser struct {
	stats ParserStats
}

// NewEnvelopeParser creates a parser with zeroed stats.
func NewEnvelopeParser() *EnvelopeParser {
	return &EnvelopeParser{}
}

// Parse normalizes raw model output. It never fails: when no envelope shape
// matches, the trimmed raw text is the answer.
func (p *EnvelopeParser) Parse(raw string) Envelope {
	p.stats.TotalProcessed++
	trimmed := strings.TrimSpace(raw)

	// 1. The whole reply is a JSON envelope.
	if text, ok := decodeEnvelope(trimmed); ok {
		p.stats.DirectParses++
		return Envelope{Text: text, Method: ParseDirect, Confidence: 1.0}
	}

	// 2. The envelope is wrapped in a markdown code fence.
	if unfenced, ok := stripFence(trimmed); ok {
		if text, ok := decodeEnvelope(unfenced); ok {
			p.stats.FencedParses++
			return Envelope{Text: text, Method: ParseFenced, Confidence: 0.95}
		}
	}

	// 3. An envelope is buried in surrounding prose.
	for _, cand := range findJSONCandidates(trimmed) {
		if text, ok := decodeEnvelope(cand); ok {
			p.stats.EmbeddedParses++
			return Envelope{Text: text, Method: ParseEmbedded, Confidence: 0.85}
		}
	}

	// 4. Plain text. A fenced block with no envelope inside still sheds
	// its fence so the user never hears backticks read aloud.
	if unfenced, ok := stripFence(trimmed); ok {
		trimmed = unfenced
	}
	p.stats.RawFallbacks++
	return Envelope{Text: trimmed, Method: ParseRaw, Confidence: 0.5}
}

// Stats returns current parsing statistics.
func (p *EnvelopeParser) Stats() ParserStats {
	return p.stats
}

// decodeEnvelope tries the known JSON reply shapes in priority order:
// OpenAI choices, then {"message": ...}, then {"response": ...}.
func decodeEnvelope(s string) (string, bool) {
	if !strings.HasPrefix(s, "{") {
		return "", false
	}

	var openai struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(s), &openai); err == nil && len(openai.Choices) > 0 {
		if content := strings.TrimSpace(openai.Choices[0].Message.Content); content != "" {
			return content, true
		}
	}

	var message struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(s), &message); err == nil {
		if content := strings.TrimSpace(message.Message); content != "" {
			return content, true
		}
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal([]byte(s), &response); err == nil {
		if content := strings.TrimSpace(response.Response); content != "" {
			return content, true
		}
	}

	return "", false
}

// stripFence removes a surrounding markdown code fence. The second return
// is false when s is not fenced.
func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return s, false
	}
	body := s[3:]
	// The opening line holds only the fence and an optional language tag
	// (```json, ```python, ...); content starts after the newline. A
	// single-line fence carries the tag glued to the content instead.
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = strings.TrimLeft(body,
			"abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body), true
}
