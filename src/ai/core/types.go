package core

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned when a provider is built without its credential.
	ErrNotConfigured = errors.New("ai: provider credential not configured")
	// ErrMalformedResponse is returned when the provider answered but the payload is unusable.
	ErrMalformedResponse = errors.New("ai: malformed provider response")
)

// Tool represents a tool capability (e.g., web_search) for providers that support it.
type Tool struct {
	Type string
}

// Options controls model behavior; fields are optional per provider.
type Options struct {
	Model               string
	Temperature         float64
	TopP                float64
	MaxCompletionTokens int
	SystemPrompt        string
	EnableWebSearch     bool
	// SearchRecency limits web results to "day", "week", "month" or "year".
	SearchRecency string
}

// Response is the provider answer plus the URLs it cited.
type Response struct {
	Text      string
	Citations []string
	Model     string
}

// Client is a provider-agnostic interface for the reasoning call.
type Client interface {
	Respond(ctx context.Context, input string, tools []Tool, opts Options) (*Response, error)
	Name() string
}
