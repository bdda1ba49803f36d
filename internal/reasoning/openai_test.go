package reasoning

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAICompatComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompatClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	got, err := c.Complete(context.Background(), "say hello")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "hello there" {
		t.Errorf("Complete = %q, want %q", got, "hello there")
	}
}

func TestOpenAICompatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAICompatClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	if _, err := c.Complete(context.Background(), "anything"); err == nil {
		t.Fatal("expected an error for an API error body")
	}
}

func TestOpenAICompatBoundedByContextOnly(t *testing.T) {
	// Calls are bounded by the caller's context, never by a client-wide
	// timeout: unbounded callers (content generation) must be able to
	// outlast any single request deadline.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect;
		// otherwise r.Context() is never canceled and Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewOpenAICompatClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	if c.httpClient.Timeout != 0 {
		t.Fatalf("httpClient.Timeout = %v, want none", c.httpClient.Timeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, "slow prompt")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want the context deadline", err)
	}
}
