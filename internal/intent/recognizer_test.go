package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"aura/internal/types"
)

// MockClient implements reasoning.Client with function fields.
type MockClient struct {
	CompleteFunc           func(ctx context.Context, prompt string) (string, error)
	CompleteWithSystemFunc func(ctx context.Context, sys, user string) (string, error)
}

func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return "ok", nil
}

func (m *MockClient) CompleteWithSystem(ctx context.Context, sys, user string) (string, error) {
	if m.CompleteWithSystemFunc != nil {
		return m.CompleteWithSystemFunc(ctx, sys, user)
	}
	return "ok", nil
}

func newTestRecognizer(client *MockClient) *Recognizer {
	return NewRecognizer(client, DefaultConfig(), zap.NewNop(), nil)
}

func TestRecognizeHappyPath(t *testing.T) {
	client := &MockClient{
		CompleteWithSystemFunc: func(ctx context.Context, sys, user string) (string, error) {
			return `{"intent": "question_answering", "confidence": 0.93, "parameters": {"style": "summarize"}}`, nil
		},
	}
	r := newTestRecognizer(client)

	in := r.Recognize(context.Background(), types.NewUtterance("summarize this page"), nil)
	if in.Kind != types.KindQuestionAnswering {
		t.Errorf("Kind = %q", in.Kind)
	}
	if in.Confidence != 0.93 {
		t.Errorf("Confidence = %v", in.Confidence)
	}
	if in.Fallback {
		t.Error("should not be a fallback")
	}
	if in.Param("style") != "summarize" {
		t.Errorf("style = %q", in.Param("style"))
	}
}

func TestRecognizeLowConfidenceFallsBack(t *testing.T) {
	client := &MockClient{
		CompleteWithSystemFunc: func(ctx context.Context, sys, user string) (string, error) {
			return `{"intent": "conversational_chat", "confidence": 0.4}`, nil
		},
	}
	r := newTestRecognizer(client)

	in := r.Recognize(context.Background(), types.NewUtterance("hmm"), nil)
	if in.Kind != types.KindGUIInteraction {
		t.Errorf("Kind = %q, want GUI fallback", in.Kind)
	}
	if !in.Fallback {
		t.Error("Fallback should be set")
	}
	if in.Reason != ReasonLowConfidence {
		t.Errorf("Reason = %q", in.Reason)
	}
}

func TestRecognizeConfidenceClamped(t *testing.T) {
	client := &MockClient{
		CompleteWithSystemFunc: func(ctx context.Context, sys, user string) (string, error) {
			return `{"intent": "gui_interaction", "confidence": 7.5}`, nil
		},
	}
	r := newTestRecognizer(client)

	in := r.Recognize(context.Background(), types.NewUtterance("click ok"), nil)
	if in.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want clamped 1.0", in.Confidence)
	}
	if in.Fallback {
		t.Error("clamped-high confidence should pass the threshold")
	}
}

func TestRecognizeUnknownLabelFallsBack(t *testing.T) {
	client := &MockClient{
		CompleteWithSystemFunc: func(ctx context.Context, sys, user string) (string, error) {
			return `{"intent": "world_domination", "confidence": 0.99}`, nil
		},
	}
	r := newTestRecognizer(client)

	in := r.Recognize(context.Background(), types.NewUtterance("do the thing"), nil)
	if !in.Fallback || in.Reason != ReasonUnknownIntent {
		t.Errorf("got %+v, want unknown-intent fallback", in)
	}
}

func TestRecognizeClientErrorFallsBack(t *testing.T) {
	client := &MockClient{
		CompleteWithSystemFunc: func(ctx context.Context, sys, user string) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	r := newTestRecognizer(client)

	in := r.Recognize(context.Background(), types.NewUtterance("click ok"), nil)
	if !in.Fallback || in.Reason != ReasonClassificationFailed {
		t.Errorf("got %+v, want classification-failed fallback", in)
	}
}

func TestRecognizeNilClientFallsBack(t *testing.T) {
	r := NewRecognizer(nil, DefaultConfig(), zap.NewNop(), nil)
	in := r.Recognize(context.Background(), types.NewUtterance("anything"), nil)
	if !in.Fallback || in.Reason != ReasonReasoningUnavailable {
		t.Errorf("got %+v, want reasoning-unavailable fallback", in)
	}
}

func TestRecognizeUnparseableFallsBack(t *testing.T) {
	client := &MockClient{
		CompleteWithSystemFunc: func(ctx context.Context, sys, user string) (string, error) {
			return "I think you want to click something, probably.", nil
		},
	}
	r := newTestRecognizer(client)

	in := r.Recognize(context.Background(), types.NewUtterance("click send"), nil)
	if !in.Fallback || in.Reason != ReasonUnparseableResponse {
		t.Errorf("got %+v, want unparseable fallback", in)
	}
}

func TestRecognizeExtractsEmbeddedJSON(t *testing.T) {
	client := &MockClient{
		CompleteWithSystemFunc: func(ctx context.Context, sys, user string) (string, error) {
			return "Here is my classification:\n```json\n{\"intent\": \"deferred_action\", \"confidence\": 0.96, \"parameters\": {\"description\": \"fibonacci function\", \"content_type\": \"code\"}}\n```", nil
		},
	}
	r := newTestRecognizer(client)

	in := r.Recognize(context.Background(), types.NewUtterance("write me a python function for fibonacci"), nil)
	if in.Kind != types.KindDeferredAction {
		t.Errorf("Kind = %q", in.Kind)
	}
	if in.Param("content_type") != "code" {
		t.Errorf("content_type = %q", in.Param("content_type"))
	}
}

func TestRecognizeIntentLockTimeout(t *testing.T) {
	release := make(chan struct{})
	client := &MockClient{
		CompleteWithSystemFunc: func(ctx context.Context, sys, user string) (string, error) {
			<-release
			return `{"intent": "conversational_chat", "confidence": 0.9}`, nil
		},
	}
	cfg := DefaultConfig()
	cfg.LockTimeout = 20 * time.Millisecond
	r := NewRecognizer(client, cfg, zap.NewNop(), nil)

	done := make(chan types.Intent, 1)
	go func() {
		done <- r.Recognize(context.Background(), types.NewUtterance("first"), nil)
	}()

	// Give the first call time to take the lock, then contend.
	time.Sleep(5 * time.Millisecond)
	in := r.Recognize(context.Background(), types.NewUtterance("second"), nil)
	if !in.Fallback || in.Reason != ReasonIntentLockTimeout {
		t.Errorf("got %+v, want intent-lock-timeout fallback", in)
	}

	close(release)
	first := <-done
	if first.Kind != types.KindConversationalChat {
		t.Errorf("first call should still classify, got %+v", first)
	}
}

func TestBuildPromptHistoryWindow(t *testing.T) {
	r := newTestRecognizer(&MockClient{})
	history := []Exchange{
		{User: "one", Assistant: "1"},
		{User: "two", Assistant: "2"},
		{User: "three", Assistant: "3"},
		{User: "four", Assistant: "4"},
	}
	prompt := r.buildPrompt("current", history)

	if strings.Contains(prompt, "one") {
		t.Error("oldest exchange should be outside the window")
	}
	for _, want := range []string{"two", "three", "four", "current"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
