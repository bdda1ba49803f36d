// Package reasoning provides the text model clients used for intent
// classification, summarization, content generation, and chat, plus the
// envelope parser that normalizes whatever shape the model answers in.
package reasoning

import "context"

// Client is the interface every reasoning provider implements.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
