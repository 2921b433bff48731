package openai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/stake-plus/validai/src/ai/core"
)

func init() {
	core.RegisterProvider("openai", newClient, "gpt", "gpt4o")
}

type client struct {
	api      openai.Client
	defaults core.Options
}

func newClient(cfg core.FactoryConfig) (core.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", core.ErrNotConfigured)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &client{
		api: openai.NewClient(opts...),
		defaults: core.Options{
			Model:               core.ResolveModelName("openai", cfg.Model),
			Temperature:         cfg.Temperature,
			MaxCompletionTokens: cfg.MaxCompletionTokens,
			SystemPrompt:        cfg.SystemPrompt,
		},
	}, nil
}

func (c *client) Name() string { return "openai" }

func (c *client) Respond(ctx context.Context, input string, tools []core.Tool, opts core.Options) (*core.Response, error) {
	merged := c.merge(opts)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(merged.SystemPrompt) != "" {
		messages = append(messages, openai.SystemMessage(merged.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(input))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(merged.Model),
		Messages: messages,
	}
	// Search-preview models reject sampling parameters.
	if merged.Temperature != 0 && !strings.Contains(merged.Model, "search") {
		params.Temperature = openai.Float(merged.Temperature)
	}
	if merged.MaxCompletionTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(merged.MaxCompletionTokens))
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai API error: status %d: %w", apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("openai API error: %w", err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("openai: %w: no choices", core.ErrMalformedResponse)
	}

	msg := completion.Choices[0].Message
	var citations []string
	for _, a := range msg.Annotations {
		citations = append(citations, a.URLCitation.URL)
	}
	log.Printf("openai: completion id=%s model=%s citations=%d", completion.ID, completion.Model, len(citations))

	return &core.Response{
		Text:      msg.Content,
		Citations: core.DedupeCitations(citations),
		Model:     completion.Model,
	}, nil
}

func (c *client) merge(opts core.Options) core.Options {
	out := c.defaults
	if opts.Model != "" {
		out.Model = opts.Model
	}
	if opts.Temperature != 0 {
		out.Temperature = opts.Temperature
	}
	if opts.MaxCompletionTokens != 0 {
		out.MaxCompletionTokens = opts.MaxCompletionTokens
	}
	if opts.SystemPrompt != "" {
		out.SystemPrompt = opts.SystemPrompt
	}
	return out
}
