package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"aura/internal/desktop"
	"aura/internal/reasoning"
	"aura/internal/types"
)

// Config holds Gemini analyzer settings.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiAnalyzer implements Client by sending a screen capture and the
// prompt to a Gemini multimodal model.
type GeminiAnalyzer struct {
	client   *genai.Client
	model    string
	timeout  time.Duration
	capturer desktop.ScreenCapturer
	logger   *zap.Logger
}

// NewGeminiAnalyzer creates the analyzer. capturer provides the screenshot
// bytes; it is a separate collaborator so tests can feed canned images.
func NewGeminiAnalyzer(ctx context.Context, cfg Config, capturer desktop.ScreenCapturer, logger *zap.Logger) (*GeminiAnalyzer, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}

	return &GeminiAnalyzer{
		client:   client,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		capturer: capturer,
		logger:   logger,
	}, nil
}

// AnalyzeScreen captures the screen and asks the model about it.
func (a *GeminiAnalyzer) AnalyzeScreen(ctx context.Context, prompt string) (Analysis, error) {
	start := time.Now()

	png, err := a.capturer.CaptureScreen(ctx)
	if err != nil {
		return Analysis{}, types.WrapError(types.ErrModuleUnavailable, err, "screen capture failed")
	}

	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(png, "image/png"),
		genai.NewPartFromText(prompt),
	}, genai.RoleUser)

	resp, err := a.client.Models.GenerateContent(cctx, a.model, []*genai.Content{content}, nil)
	if err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return Analysis{}, types.WrapError(types.ErrReasoningTimeout, err, "vision analysis exceeded %s", a.timeout)
		}
		return Analysis{}, types.WrapError(types.ErrModuleUnavailable, err, "vision analysis failed")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Analysis{}, types.NewError(types.ErrExtractionFailed, "vision model returned no content")
	}

	var raw strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			raw.WriteString(part.Text)
		}
	}

	analysis, err := ParseAnalysis(raw.String())
	if err != nil {
		return Analysis{}, err
	}

	a.logger.Debug("screen analyzed",
		zap.Int("capture_bytes", len(png)),
		zap.Int("plan_steps", len(analysis.Plan)),
		zap.Duration("took", time.Since(start)))
	return analysis, nil
}

// ParseAnalysis decodes the model reply: a bare JSON object, a fenced or
// embedded one, or plain prose which becomes a description-only analysis.
func ParseAnalysis(raw string) (Analysis, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Analysis{}, types.NewError(types.ErrExtractionFailed, "vision model returned empty text")
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(trimmed), &analysis); err == nil {
		if analysis.Description != "" || analysis.HasPlan() {
			return analysis, nil
		}
	}

	if obj, ok := reasoning.ExtractJSONObject(trimmed); ok {
		if err := json.Unmarshal([]byte(obj), &analysis); err == nil {
			if analysis.Description != "" || analysis.HasPlan() {
				return analysis, nil
			}
		}
	}

	// Prose answer: usable for QA, useless for action plans.
	return Analysis{Description: trimmed}, nil
}
