package types

import "strings"

// =============================================================================
// APPLICATION DETECTION
// =============================================================================

// AppKind classifies the frontmost application for routing purposes.
type AppKind string

const (
	AppBrowser    AppKind = "browser"
	AppPDFReader  AppKind = "pdf_reader"
	AppTextEditor AppKind = "text_editor"
	AppOther      AppKind = "other"
)

// BrowserType distinguishes browser engines where extraction differs.
type BrowserType string

const (
	BrowserChrome  BrowserType = "chrome"
	BrowserSafari  BrowserType = "safari"
	BrowserFirefox BrowserType = "firefox"
	BrowserOther   BrowserType = "other"
)

// ApplicationInfo describes the frontmost application as reported by a
// detection method. Confidence reflects how reliable that method is.
type ApplicationInfo struct {
	Name            string
	BundleID        string
	Kind            AppKind
	Browser         BrowserType
	Confidence      float64
	DetectionMethod string
}

// Extractable reports whether the direct text-extraction fast path applies.
func (a ApplicationInfo) Extractable() bool {
	return a.Kind == AppBrowser || a.Kind == AppPDFReader
}

// ClassifyApp maps a raw application name to an AppKind and BrowserType
// using case-insensitive substring matching over known product names.
func ClassifyApp(name string) (AppKind, BrowserType) {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "chrome") || strings.Contains(n, "chromium") ||
		strings.Contains(n, "brave") || strings.Contains(n, "edge"):
		return AppBrowser, BrowserChrome
	case strings.Contains(n, "safari"):
		return AppBrowser, BrowserSafari
	case strings.Contains(n, "firefox"):
		return AppBrowser, BrowserFirefox
	case strings.Contains(n, "preview") || strings.Contains(n, "acrobat") ||
		strings.Contains(n, "pdf") || strings.Contains(n, "skim"):
		return AppPDFReader, ""
	case strings.Contains(n, "code") || strings.Contains(n, "textedit") ||
		strings.Contains(n, "sublime") || strings.Contains(n, "vim") ||
		strings.Contains(n, "emacs") || strings.Contains(n, "notes"):
		return AppTextEditor, ""
	}
	return AppOther, ""
}

// =============================================================================
// GEOMETRY AND ELEMENTS
// =============================================================================

// Point is a screen coordinate in pixels, origin top-left.
type Point struct {
	X int
	Y int
}

// Rect is a screen-space bounding box.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Area returns the box area; used for tie-breaking element matches.
func (r Rect) Area() int {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Contains reports whether p lies inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Element is an accessibility node as seen by the core: a role string, the
// labels it may match on, and enough geometry to click its center. Extra
// carries host-specific attributes opaque to the core.
type Element struct {
	Role        string
	Title       string
	Description string
	Value       string
	Bounds      Rect
	Enabled     bool
	Extra       map[string]string
}

// Labels returns the matchable attribute values in priority order.
func (e Element) Labels() []string {
	out := make([]string, 0, 3)
	for _, s := range []string{e.Title, e.Description, e.Value} {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Center is the click target for the element.
func (e Element) Center() Point { return e.Bounds.Center() }
