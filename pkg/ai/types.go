package ai

import "context"

// CompletionRequest describes one chat completion call against a language model.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
	ForceJSON    bool
}

// Completer describes a language model capable of answering a prompt with raw text.
// Implementations must honour the context deadline; callers rely on it for per-call
// timeouts. The returned text is not guaranteed to be well-formed JSON even when
// ForceJSON is set.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
