package types

import (
	"strings"
	"testing"
	"time"
)

func TestNewUtteranceIDsMonotonic(t *testing.T) {
	a := NewUtterance("open settings")
	b := NewUtterance("close window")

	if a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q twice", a.ID)
	}
	if !strings.HasPrefix(a.ID, "u-") || !strings.HasPrefix(b.ID, "u-") {
		t.Errorf("ids should carry the u- prefix, got %q and %q", a.ID, b.ID)
	}
	if a.Text != "open settings" {
		t.Errorf("Text = %q, want %q", a.Text, "open settings")
	}
	if a.ReceivedAt.IsZero() {
		t.Error("ReceivedAt should be stamped")
	}
}

func TestIntentKindValid(t *testing.T) {
	for _, k := range AllIntentKinds {
		if !k.Valid() {
			t.Errorf("kind %q should be valid", k)
		}
	}
	if IntentKind("telepathy").Valid() {
		t.Error("unknown kind should not be valid")
	}
}

func TestFallbackIntent(t *testing.T) {
	in := FallbackIntent("classifier timeout")

	if in.Kind != KindGUIInteraction {
		t.Errorf("Kind = %q, want %q", in.Kind, KindGUIInteraction)
	}
	if in.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", in.Confidence)
	}
	if !in.Fallback {
		t.Error("Fallback should be set")
	}
	if in.Reason != "classifier timeout" {
		t.Errorf("Reason = %q", in.Reason)
	}
}

func TestIntentParam(t *testing.T) {
	in := Intent{Parameters: map[string]any{
		"target":  "Submit",
		"count":   3,
		"amount":  float64(10), // json numbers arrive as float64
		"ratio":   2.5,
		"verbose": true,
	}}

	tests := []struct {
		key  string
		want string
	}{
		{"target", "Submit"},
		{"count", "3"},
		{"amount", "10"},
		{"ratio", "2.5"},
		{"verbose", "true"},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := in.Param(tt.key); got != tt.want {
			t.Errorf("Param(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}

	var empty Intent
	if got := empty.Param("anything"); got != "" {
		t.Errorf("Param on nil map = %q, want empty", got)
	}
}

func TestHandlerResultConstructors(t *testing.T) {
	ok := Success(MethodFastPath, "clicked Submit")
	if !ok.OK() || ok.Waiting() {
		t.Errorf("Success: OK=%v Waiting=%v", ok.OK(), ok.Waiting())
	}
	if ok.Method != MethodFastPath {
		t.Errorf("Method = %q", ok.Method)
	}

	fail := Failure(MethodSlowPath, NewError(ErrElementNotFound, "no match for %q", "Submit"))
	if fail.OK() {
		t.Error("Failure should not be OK")
	}
	if fail.Err == nil || fail.Err.Kind != ErrElementNotFound {
		t.Errorf("Err = %+v", fail.Err)
	}
	if fail.Message == "" {
		t.Error("Failure should surface the error message")
	}

	wait := WaitingForUser("click where you want the text")
	if !wait.Waiting() || wait.OK() {
		t.Errorf("WaitingForUser: Waiting=%v OK=%v", wait.Waiting(), wait.OK())
	}
	if wait.Method != MethodDeferred {
		t.Errorf("Method = %q, want %q", wait.Method, MethodDeferred)
	}
}

func TestTimingsStage(t *testing.T) {
	var tm Timings
	tm.Stage("classify", 120*time.Millisecond)
	tm.Stage("execute", 80*time.Millisecond)

	if got := tm.Stages["classify"]; got != 120*time.Millisecond {
		t.Errorf("classify = %v", got)
	}
	if got := tm.Stages["execute"]; got != 80*time.Millisecond {
		t.Errorf("execute = %v", got)
	}
}

func TestContentTypeNoun(t *testing.T) {
	tests := []struct {
		ct   ContentType
		want string
	}{
		{ContentCode, "code"},
		{ContentText, "text"},
		{ContentOther, "content"},
		{ContentType("mystery"), "content"},
	}
	for _, tt := range tests {
		if got := tt.ct.Noun(); got != tt.want {
			t.Errorf("Noun(%q) = %q, want %q", tt.ct, got, tt.want)
		}
	}
}

func TestClassifyApp(t *testing.T) {
	tests := []struct {
		name    string
		kind    AppKind
		browser BrowserType
	}{
		{"Google Chrome", AppBrowser, BrowserChrome},
		{"Brave Browser", AppBrowser, BrowserChrome},
		{"Safari", AppBrowser, BrowserSafari},
		{"Firefox Developer Edition", AppBrowser, BrowserFirefox},
		{"Preview", AppPDFReader, ""},
		{"Adobe Acrobat Reader", AppPDFReader, ""},
		{"Visual Studio Code", AppTextEditor, ""},
		{"Terminal", AppOther, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, browser := ClassifyApp(tt.name)
			if kind != tt.kind {
				t.Errorf("kind = %q, want %q", kind, tt.kind)
			}
			if browser != tt.browser {
				t.Errorf("browser = %q, want %q", browser, tt.browser)
			}
		})
	}
}

func TestRectGeometry(t *testing.T) {
	r := Rect{X: 10, Y: 20, W: 100, H: 40}

	if c := r.Center(); c.X != 60 || c.Y != 40 {
		t.Errorf("Center = %+v", c)
	}
	if a := r.Area(); a != 4000 {
		t.Errorf("Area = %d", a)
	}
	if !r.Contains(Point{X: 10, Y: 20}) {
		t.Error("top-left corner should be inside")
	}
	if r.Contains(Point{X: 110, Y: 20}) {
		t.Error("right edge is exclusive")
	}

	degenerate := Rect{X: 0, Y: 0, W: -5, H: 10}
	if degenerate.Area() != 0 {
		t.Error("negative extent should yield zero area")
	}
}

func TestElementLabels(t *testing.T) {
	e := Element{Title: "Submit", Description: "", Value: "  "}
	labels := e.Labels()
	if len(labels) != 1 || labels[0] != "Submit" {
		t.Errorf("Labels = %v", labels)
	}

	full := Element{Title: "Save", Description: "Save the document", Value: "save.txt"}
	if got := full.Labels(); len(got) != 3 {
		t.Errorf("Labels = %v, want 3 entries", got)
	}
}

func TestDeferredPendingClock(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := DeferredPending{
		ID:         "d-1",
		PreparedAt: now,
		TimeoutAt:  now.Add(10 * time.Minute),
	}

	if p.Expired(now) {
		t.Error("not expired at prepare time")
	}
	if got := p.Remaining(now.Add(9 * time.Minute)); got != time.Minute {
		t.Errorf("Remaining = %v, want 1m", got)
	}
	if !p.Expired(now.Add(11 * time.Minute)) {
		t.Error("should be expired past the deadline")
	}

	var zero DeferredPending
	if zero.Expired(now) {
		t.Error("zero TimeoutAt never expires")
	}
}

func TestDeferredStateValid(t *testing.T) {
	for _, s := range []DeferredState{
		DeferredIdle, DeferredPreparing, DeferredWaiting, DeferredExecuting, DeferredFailed,
	} {
		if !s.Valid() {
			t.Errorf("state %q should be valid", s)
		}
	}
	if DeferredState("limbo").Valid() {
		t.Error("unknown state should not be valid")
	}
}
