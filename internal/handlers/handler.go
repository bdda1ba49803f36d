// Package handlers contains the four command handlers the orchestrator
// routes to: GUI interaction, question answering, conversational chat, and
// deferred click-to-place actions. Handlers convert every internal failure
// into a HandlerResult; nothing propagates past Handle.
package handlers

import (
	"context"

	"aura/internal/types"
)

// Command is one routed unit of work: the utterance plus its classified
// intent.
type Command struct {
	Utterance types.Utterance
	Intent    types.Intent
}

// Handler executes commands of one intent kind.
type Handler interface {
	// Handle runs the command. The returned result always carries the
	// utterance's correlation id; errors are embedded, never returned.
	Handle(ctx context.Context, cmd Command) types.HandlerResult

	// Supports reports whether the handler accepts the given kind.
	Supports(kind types.IntentKind) bool
}

// Registry maps each intent kind to exactly one handler. Selection is
// deterministic; a kind without a handler is an internal error, never a
// silent reroute.
type Registry struct {
	byKind map[types.IntentKind]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKind: make(map[types.IntentKind]Handler)}
}

// Register binds a handler to a kind, replacing any previous binding.
func (r *Registry) Register(kind types.IntentKind, h Handler) {
	r.byKind[kind] = h
}

// Select returns the handler for the intent's kind.
func (r *Registry) Select(in types.Intent) (Handler, *types.Error) {
	h, ok := r.byKind[in.Kind]
	if !ok {
		return nil, types.NewError(types.ErrInternal, "no handler registered for intent %q", in.Kind)
	}
	return h, nil
}

// Kinds returns the registered intent kinds, for diagnostics.
func (r *Registry) Kinds() []types.IntentKind {
	kinds := make([]types.IntentKind, 0, len(r.byKind))
	for k := range r.byKind {
		kinds = append(kinds, k)
	}
	return kinds
}

// finish stamps the shared envelope fields before a result leaves a
// handler.
func finish(res types.HandlerResult, cmd Command) types.HandlerResult {
	res.CorrelationID = cmd.Utterance.ID
	return res
}
