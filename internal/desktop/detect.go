package desktop

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"aura/internal/types"
)

// DetectionMethod is one way of identifying the frontmost application.
// Methods are tried in order; each gets its own timeout so a hung probe
// cannot stall the chain.
type DetectionMethod struct {
	Name       string
	Confidence float64
	Timeout    time.Duration
	Probe      func(ctx context.Context) (types.ApplicationInfo, error)
}

// Detector resolves the active application by walking a fallback chain of
// detection methods. The first success wins and its confidence and method
// name travel with the result into every downstream log line.
type Detector struct {
	methods []DetectionMethod
	logger  *zap.Logger
}

// NewDetector creates a detector over the given methods.
func NewDetector(logger *zap.Logger, methods ...DetectionMethod) *Detector {
	return &Detector{methods: methods, logger: logger}
}

// DetectActiveApp tries each method in order and returns the first hit.
func (d *Detector) DetectActiveApp(ctx context.Context) (types.ApplicationInfo, error) {
	var lastErr error
	for _, m := range d.methods {
		timeout := m.Timeout
		if timeout <= 0 {
			timeout = 500 * time.Millisecond
		}
		mctx, cancel := context.WithTimeout(ctx, timeout)
		app, err := m.Probe(mctx)
		cancel()

		if err != nil {
			d.logger.Debug("detection method failed",
				zap.String("method", m.Name),
				zap.Error(err))
			lastErr = err
			continue
		}
		if strings.TrimSpace(app.Name) == "" {
			continue
		}

		app.DetectionMethod = m.Name
		if app.Confidence == 0 {
			app.Confidence = m.Confidence
		}
		if app.Kind == "" {
			app.Kind, app.Browser = types.ClassifyApp(app.Name)
		}

		d.logger.Debug("active app detected",
			zap.String("app", app.Name),
			zap.String("method", m.Name),
			zap.Float64("confidence", app.Confidence))
		return app, nil
	}

	if lastErr != nil {
		return types.ApplicationInfo{}, types.WrapError(types.ErrModuleUnavailable, lastErr,
			"all application detection methods failed")
	}
	return types.ApplicationInfo{}, types.NewError(types.ErrModuleUnavailable,
		"no application detection method produced a result")
}

// DefaultMethods returns the standard detection chain for this host:
// frontmost-window probe, then process-list scan, then the configured
// static default when one is set.
func DefaultMethods(defaultApp string) []DetectionMethod {
	methods := []DetectionMethod{
		frontmostWindowMethod(),
		processListMethod(),
	}
	if defaultApp != "" {
		methods = append(methods, staticDefaultMethod(defaultApp))
	}
	return methods
}

// staticDefaultMethod always reports the configured application. It sits
// at the end of the chain so detection degrades instead of failing on
// hosts without a usable window system.
func staticDefaultMethod(name string) DetectionMethod {
	return DetectionMethod{
		Name:       "configured_default",
		Confidence: 0.1,
		Timeout:    time.Millisecond,
		Probe: func(ctx context.Context) (types.ApplicationInfo, error) {
			kind, browser := types.ClassifyApp(name)
			return types.ApplicationInfo{
				Name:    name,
				Kind:    kind,
				Browser: browser,
			}, nil
		},
	}
}

// pickExtractableProcess scans process names for something worth reading
// (a browser or PDF reader) and falls back to none.
func pickExtractableProcess(names []string) (types.ApplicationInfo, bool) {
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		kind, browser := types.ClassifyApp(name)
		if kind == types.AppBrowser || kind == types.AppPDFReader {
			return types.ApplicationInfo{
				Name:    name,
				Kind:    kind,
				Browser: browser,
			}, true
		}
	}
	return types.ApplicationInfo{}, false
}
