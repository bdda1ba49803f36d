// Package browse implements direct text extraction from the frontmost
// browser over the Chrome DevTools Protocol, plus the PDF equivalent. This
// is the question-answering fast path: pulling document.body.innerText out
// of the active tab is an order of magnitude faster than a vision round
// trip.
package browse

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"aura/internal/types"
)

// Config holds extractor settings.
type Config struct {
	// ControlURL is the DevTools websocket of the running browser
	// (started with --remote-debugging-port). Empty disables extraction.
	ControlURL string

	// PageTimeout bounds a single extraction attempt.
	PageTimeout time.Duration
}

// RodExtractor extracts visible text from the active browser tab. The CDP
// connection is dialed lazily on first use and kept for the process
// lifetime; a dropped connection reconnects on the next call.
type RodExtractor struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewRodExtractor creates the extractor. It does not connect yet.
func NewRodExtractor(cfg Config, logger *zap.Logger) *RodExtractor {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 2 * time.Second
	}
	return &RodExtractor{cfg: cfg, logger: logger}
}

// connect dials the browser under the extractor lock.
func (e *RodExtractor) connect() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		return e.browser, nil
	}
	if e.cfg.ControlURL == "" {
		return nil, types.NewError(types.ErrModuleUnavailable,
			"no browser DevTools URL configured").
			WithHint("start the browser with --remote-debugging-port and set the control URL")
	}

	browser := rod.New().ControlURL(e.cfg.ControlURL)
	if err := browser.Connect(); err != nil {
		return nil, types.WrapError(types.ErrModuleUnavailable, err,
			"cannot reach browser DevTools at %s", e.cfg.ControlURL)
	}
	e.browser = browser
	return browser, nil
}

// drop forgets a broken connection so the next call re-dials.
func (e *RodExtractor) drop() {
	e.mu.Lock()
	e.browser = nil
	e.mu.Unlock()
}

// ExtractText returns the visible text of the active tab.
func (e *RodExtractor) ExtractText(ctx context.Context, app types.ApplicationInfo) (string, error) {
	browser, err := e.connect()
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := e.extract(ctx, browser)
	if err != nil {
		e.drop()
		if ctx.Err() == context.DeadlineExceeded {
			return "", types.WrapError(types.ErrExtractionTimeout, err, "browser extraction timed out")
		}
		return "", types.WrapError(types.ErrExtractionFailed, err, "browser extraction failed")
	}

	e.logger.Debug("browser text extracted",
		zap.String("app", app.Name),
		zap.Int("chars", len(text)),
		zap.Duration("took", time.Since(start)))
	return text, nil
}

// extract finds the foreground page and reads its text.
func (e *RodExtractor) extract(ctx context.Context, browser *rod.Browser) (string, error) {
	b := browser.Context(ctx).Timeout(e.cfg.PageTimeout)

	pages, err := b.Pages()
	if err != nil {
		return "", fmt.Errorf("list pages: %w", err)
	}
	page, err := activePage(pages)
	if err != nil {
		return "", err
	}
	page = page.Context(ctx).Timeout(e.cfg.PageTimeout)

	// innerText is what the user actually sees; prefer it.
	obj, err := page.Eval(`() => document.body ? document.body.innerText : ""`)
	if err == nil {
		if text := strings.TrimSpace(obj.Value.Str()); text != "" {
			return text, nil
		}
	}

	// Some pages (view-source, XML) have no usable innerText; fall back
	// to parsing the raw HTML.
	raw, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("page HTML: %w", err)
	}
	text := HTMLToText(raw)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("page produced no readable text")
	}
	return text, nil
}

// activePage picks the focused tab: the first page whose document is
// visible, else the first page at all.
func activePage(pages rod.Pages) (*rod.Page, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("browser has no open pages")
	}
	for _, page := range pages {
		obj, err := page.Eval(`() => document.visibilityState`)
		if err != nil {
			continue
		}
		if obj.Value.Str() == "visible" {
			return page, nil
		}
	}
	return pages.First(), nil
}
