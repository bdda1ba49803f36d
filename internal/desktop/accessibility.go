package desktop

import (
	"context"

	"aura/internal/types"
)

// BasicAccessibility is an Accessibility built from a Detector plus an
// optional element source. Hosts without a native accessibility bridge
// wire this with a nil source: app detection still works and element
// queries report module_unavailable, which sends the GUI handler to its
// vision fallback.
type BasicAccessibility struct {
	Detector *Detector
	Elements ElementSource
}

// ElementSource answers element queries; native bridges implement it.
type ElementSource interface {
	FindElements(ctx context.Context, role, label string, app types.ApplicationInfo) ([]types.Element, error)
	FindScrollableRegions(ctx context.Context, app types.ApplicationInfo) ([]types.Element, error)
}

// DetectActiveApp resolves the frontmost application.
func (b *BasicAccessibility) DetectActiveApp(ctx context.Context) (types.ApplicationInfo, error) {
	return b.Detector.DetectActiveApp(ctx)
}

// FindElements queries the element source.
func (b *BasicAccessibility) FindElements(ctx context.Context, role, label string, app types.ApplicationInfo) ([]types.Element, error) {
	if b.Elements == nil {
		return nil, types.NewError(types.ErrModuleUnavailable, "no accessibility element source on this host")
	}
	return b.Elements.FindElements(ctx, role, label, app)
}

// FindScrollableRegions queries the element source.
func (b *BasicAccessibility) FindScrollableRegions(ctx context.Context, app types.ApplicationInfo) ([]types.Element, error) {
	if b.Elements == nil {
		return nil, types.NewError(types.ErrModuleUnavailable, "no accessibility element source on this host")
	}
	return b.Elements.FindScrollableRegions(ctx, app)
}
