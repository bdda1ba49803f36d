package handlers

import (
	"context"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"aura/internal/audio"
	"aura/internal/desktop"
	"aura/internal/metrics"
	"aura/internal/reasoning"
	"aura/internal/types"
	"aura/internal/vision"
)

// QAConfig holds question-answering tunables.
type QAConfig struct {
	// ExtractionBudget bounds the browser/PDF text extraction.
	ExtractionBudget time.Duration

	// SummarizeBudget bounds the summarization call.
	SummarizeBudget time.Duration

	// TotalBudget is the soft SLO for the whole fast path; exceeding it
	// is logged, never failed.
	TotalBudget time.Duration

	// MaxContentBytes truncates extracted text before summarization.
	MaxContentBytes int
}

// DefaultQAConfig returns the QA defaults.
func DefaultQAConfig() QAConfig {
	return QAConfig{
		ExtractionBudget: 2 * time.Second,
		SummarizeBudget:  3 * time.Second,
		TotalBudget:      5 * time.Second,
		MaxContentBytes:  50 * 1024,
	}
}

// QAHandler answers questions about visible content: direct text
// extraction plus summarization when the frontmost app supports it,
// vision otherwise.
type QAHandler struct {
	access  desktop.Accessibility
	browser desktop.TextExtractor
	pdf     desktop.TextExtractor
	reason  reasoning.Client
	vision  vision.Client
	audio   *audio.Feedback
	cfg     QAConfig
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// NewQAHandler creates the handler. Extractors and vision may be nil;
// whatever is missing narrows the strategy.
func NewQAHandler(access desktop.Accessibility, browser, pdf desktop.TextExtractor,
	reason reasoning.Client, vis vision.Client, fb *audio.Feedback,
	cfg QAConfig, logger *zap.Logger, rec *metrics.Recorder) *QAHandler {
	def := DefaultQAConfig()
	if cfg.ExtractionBudget <= 0 {
		cfg.ExtractionBudget = def.ExtractionBudget
	}
	if cfg.SummarizeBudget <= 0 {
		cfg.SummarizeBudget = def.SummarizeBudget
	}
	if cfg.TotalBudget <= 0 {
		cfg.TotalBudget = def.TotalBudget
	}
	if cfg.MaxContentBytes <= 0 {
		cfg.MaxContentBytes = def.MaxContentBytes
	}
	return &QAHandler{
		access:  access,
		browser: browser,
		pdf:     pdf,
		reason:  reason,
		vision:  vis,
		audio:   fb,
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
	}
}

// Supports reports whether kind routes here.
func (h *QAHandler) Supports(kind types.IntentKind) bool {
	return kind == types.KindQuestionAnswering
}

// Handle answers the question, fast path first.
func (h *QAHandler) Handle(ctx context.Context, cmd Command) types.HandlerResult {
	start := time.Now()

	res, fastErr := h.fastPath(ctx, cmd)
	if fastErr == nil {
		res.Timings = types.Timings{StartedAt: start, Total: time.Since(start)}
		if total := time.Since(start); total > h.cfg.TotalBudget {
			h.logger.Info("qa fast path exceeded soft budget",
				zap.String("utterance", cmd.Utterance.ID),
				zap.Duration("total", total),
				zap.Duration("budget", h.cfg.TotalBudget))
		}
		return finish(res, cmd)
	}

	h.logger.Info("qa fast path unavailable, using vision",
		zap.String("utterance", cmd.Utterance.ID),
		zap.Error(fastErr))

	res = h.slowPath(ctx, cmd)
	res.Timings = types.Timings{StartedAt: start, Total: time.Since(start)}
	return finish(res, cmd)
}

// fastPath extracts and summarizes text from the frontmost app. A non-nil
// error sends the handler to vision; it is never surfaced directly.
func (h *QAHandler) fastPath(ctx context.Context, cmd Command) (types.HandlerResult, error) {
	if h.access == nil {
		return types.HandlerResult{}, types.NewError(types.ErrModuleUnavailable, "no app detection")
	}

	app, err := h.access.DetectActiveApp(ctx)
	if err != nil {
		return types.HandlerResult{}, err
	}

	var extractor desktop.TextExtractor
	switch app.Kind {
	case types.AppBrowser:
		extractor = h.browser
	case types.AppPDFReader:
		extractor = h.pdf
	}
	if extractor == nil {
		return types.HandlerResult{}, types.NewError(types.ErrExtractionFailed,
			"%s (%s) has no direct text extraction", app.Name, app.Kind)
	}

	extractStart := time.Now()
	text, err := h.extractWithBudget(ctx, extractor, app)
	h.metrics.RecordStage("extraction", time.Since(extractStart))
	if err != nil {
		return types.HandlerResult{}, err
	}
	if err := validateExtraction(text); err != nil {
		return types.HandlerResult{}, err
	}

	text = truncateContent(normalizeWhitespace(text), h.cfg.MaxContentBytes)

	style := summaryStyle(cmd.Utterance.Text)
	sumStart := time.Now()
	summary, sumErr := h.summarize(ctx, text, style)
	h.metrics.RecordStage("summarize", time.Since(sumStart))
	if sumErr != nil {
		// Extraction worked; a summarization failure degrades to the
		// leading sentences instead of abandoning the fast path.
		h.logger.Warn("summarization failed, using extract fallback",
			zap.String("utterance", cmd.Utterance.ID),
			zap.Error(sumErr))
		summary = fallbackSummary(text)
	}

	h.audio.Conversational(summary)

	res := types.Success(types.MethodFastPath, summary)
	res.Data = map[string]any{
		"app":            app.Name,
		"app_kind":       string(app.Kind),
		"style":          style,
		"content_bytes":  len(text),
		"summary_direct": sumErr == nil,
	}
	return res, nil
}

// extractWithBudget runs the extractor on a worker goroutine under a hard
// wall-clock budget. The buffered channel lets an overrunning worker
// finish and be collected instead of leaking.
func (h *QAHandler) extractWithBudget(ctx context.Context, ex desktop.TextExtractor, app types.ApplicationInfo) (string, error) {
	ectx, cancel := context.WithTimeout(ctx, h.cfg.ExtractionBudget)
	defer cancel()

	type out struct {
		text string
		err  error
	}
	ch := make(chan out, 1)
	go func() {
		text, err := ex.ExtractText(ectx, app)
		ch <- out{text, err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			return "", o.err
		}
		return o.text, nil
	case <-ectx.Done():
		return "", types.NewError(types.ErrExtractionTimeout,
			"extraction exceeded %s budget", h.cfg.ExtractionBudget)
	}
}

// summarize asks the reasoning model for a style-matched summary on a
// worker goroutine under the summarize budget.
func (h *QAHandler) summarize(ctx context.Context, text, style string) (string, error) {
	if h.reason == nil {
		return "", types.NewError(types.ErrReasoningUnavailable, "no reasoning model configured")
	}

	sctx, cancel := context.WithTimeout(ctx, h.cfg.SummarizeBudget)
	defer cancel()

	type out struct {
		text string
		err  error
	}
	ch := make(chan out, 1)
	go func() {
		reply, err := h.reason.CompleteWithSystem(sctx, summarySystemPrompt(style), text)
		ch <- out{reply, err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			return "", o.err
		}
		if strings.TrimSpace(o.text) == "" {
			return "", types.NewError(types.ErrContentGenerationEmpty, "summary came back empty")
		}
		return strings.TrimSpace(o.text), nil
	case <-sctx.Done():
		return "", types.NewError(types.ErrReasoningTimeout,
			"summarization exceeded %s budget", h.cfg.SummarizeBudget)
	}
}

// slowPath describes the screen visually.
func (h *QAHandler) slowPath(ctx context.Context, cmd Command) types.HandlerResult {
	if h.vision == nil {
		err := types.NewError(types.ErrModuleUnavailable, "no extraction or vision path available")
		h.audio.EnhancedError("I can't read the screen right now.", "")
		return types.Failure(types.MethodSlowPath, err)
	}

	h.audio.Thinking("Let me look at the screen.")

	analysis, err := h.vision.AnalyzeScreen(ctx, vision.DescribePrompt(cmd.Utterance.Text))
	if err != nil {
		te := types.AsError(err)
		h.audio.EnhancedError("I couldn't analyze the screen.", te.Message)
		return types.Failure(types.MethodSlowPath, te)
	}
	if strings.TrimSpace(analysis.Description) == "" {
		err := types.NewError(types.ErrExtractionFailed, "vision produced no description")
		h.audio.EnhancedError("I couldn't make out the screen content.", "")
		return types.Failure(types.MethodSlowPath, err)
	}

	h.audio.Conversational(analysis.Description)
	res := types.Success(types.MethodSlowPath, analysis.Description)
	return res
}

// summaryStyle infers the desired summary shape from the user's phrasing.
func summaryStyle(utterance string) string {
	lower := strings.ToLower(utterance)
	switch {
	case strings.Contains(lower, "key point") || strings.Contains(lower, "bullet") ||
		strings.Contains(lower, "main point"):
		return "key_points"
	case strings.Contains(lower, "summar"):
		return "concise"
	case strings.Contains(lower, "what's on") || strings.Contains(lower, "what is on") ||
		strings.Contains(lower, "describe"):
		return "descriptive"
	}
	return "concise"
}

func summarySystemPrompt(style string) string {
	base := "You summarize on-screen content for a voice assistant. The user hears your reply read aloud, so keep it natural speech with no markdown. "
	switch style {
	case "descriptive":
		return base + "Describe what the page or document is about in up to 180 words."
	case "key_points":
		return base + "Give the three to five most important points as short spoken sentences."
	default:
		return base + "Give a concise summary in at most 100 words."
	}
}

// validateExtraction rejects text too thin or too noisy to summarize.
func validateExtraction(text string) error {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 50 {
		return types.NewError(types.ErrExtractionFailed, "extracted only %d chars", len(trimmed))
	}
	words := strings.Fields(trimmed)
	if len(words) < 10 {
		return types.NewError(types.ErrExtractionFailed, "extracted only %d words", len(words))
	}
	if r := symbolRatio(trimmed); r > 0.3 {
		return types.NewError(types.ErrExtractionFailed, "extraction is %d%% symbols", int(r*100))
	}
	if d := chromeDensity(words); d > 0.25 {
		return types.NewError(types.ErrExtractionFailed, "extraction looks like UI chrome (%d%%)", int(d*100))
	}
	return nil
}

// symbolRatio is the share of characters that are neither letters, digits,
// whitespace, nor common punctuation.
func symbolRatio(s string) float64 {
	if s == "" {
		return 0
	}
	symbols, total := 0, 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			continue
		}
		switch r {
		case '.', ',', '!', '?', ';', ':', '\'', '"', '-', '(', ')':
			continue
		}
		symbols++
	}
	return float64(symbols) / float64(total)
}

// chromePhrases are words that dominate navigation bars and dialogs but
// rarely dominate real content.
var chromePhrases = map[string]bool{
	"menu": true, "toolbar": true, "sidebar": true, "navigation": true,
	"login": true, "signup": true, "cookie": true, "cookies": true,
	"accept": true, "settings": true, "home": true, "search": true,
	"submit": true, "button": true, "loading": true,
}

// chromeDensity is the share of words that are UI-chrome vocabulary.
func chromeDensity(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if chromePhrases[strings.ToLower(strings.Trim(w, ".,!?;:"))] {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// normalizeWhitespace collapses runs of spaces and blank lines.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n")
}

// truncateContent cuts text to maxBytes without breaking mid-word: it
// prefers a sentence end within the last 500 bytes, then any whitespace.
func truncateContent(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := s[:maxBytes]

	window := 500
	if window > len(cut) {
		window = len(cut)
	}
	tail := cut[len(cut)-window:]
	if i := strings.LastIndexAny(tail, ".!?"); i >= 0 {
		return cut[:len(cut)-window+i+1]
	}
	if i := strings.LastIndexAny(cut, " \t\n"); i > 0 {
		return strings.TrimRight(cut[:i], " \t\n")
	}
	return cut
}

// fallbackSummary returns the leading sentences of the extract, capped at
// roughly 200 words, for when summarization fails.
func fallbackSummary(text string) string {
	const maxWords = 200

	var sb strings.Builder
	words := 0
	for _, sentence := range splitSentences(text) {
		n := len(strings.Fields(sentence))
		if words+n > maxWords && words > 0 {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(sentence)
		words += n
		if words >= maxWords {
			break
		}
	}
	if sb.Len() == 0 {
		fields := strings.Fields(text)
		if len(fields) > maxWords {
			fields = fields[:maxWords]
		}
		return strings.Join(fields, " ")
	}
	return sb.String()
}

// splitSentences is a best-effort sentence splitter on terminal
// punctuation.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
