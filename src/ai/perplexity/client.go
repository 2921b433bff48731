package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/stake-plus/validai/src/ai/core"
	"github.com/stake-plus/validai/src/webclient"
)

const defaultBaseURL = "https://api.perplexity.ai"

func init() {
	core.RegisterProvider("perplexity", newClient, "pplx", "sonar")
}

type client struct {
	apiKey     string
	baseURL    string
	retries    int
	httpClient *http.Client
	defaults   core.Options
}

func newClient(cfg core.FactoryConfig) (core.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("perplexity: %w", core.ErrNotConfigured)
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(valueOrDefault(cfg.BaseURL, defaultBaseURL), "/"),
		retries:    retries,
		httpClient: webclient.NewDefault(cfg.Timeout),
		defaults: core.Options{
			Model:               core.ResolveModelName("perplexity", cfg.Model),
			Temperature:         orFloat(cfg.Temperature, 0.2),
			TopP:                0.9,
			MaxCompletionTokens: orInt(cfg.MaxCompletionTokens, 2000),
			SystemPrompt:        cfg.SystemPrompt,
			SearchRecency:       "month",
		},
	}, nil
}

func (c *client) Name() string { return "perplexity" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	Temperature         float64       `json:"temperature"`
	TopP                float64       `json:"top_p,omitempty"`
	MaxTokens           int           `json:"max_tokens,omitempty"`
	SearchRecencyFilter string        `json:"search_recency_filter,omitempty"`
	DisableSearch       bool          `json:"disable_search,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Citations     []string `json:"citations"`
	SearchResults []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Date  string `json:"date"`
	} `json:"search_results"`
}

// Respond runs a single chat completion. Search stays on unless tools are passed and none of them is web_search.
func (c *client) Respond(ctx context.Context, input string, tools []core.Tool, opts core.Options) (*core.Response, error) {
	merged := c.merge(opts)
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(merged.SystemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: merged.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: input})

	payload := chatRequest{
		Model:               merged.Model,
		Messages:            messages,
		Temperature:         merged.Temperature,
		TopP:                merged.TopP,
		MaxTokens:           merged.MaxCompletionTokens,
		SearchRecencyFilter: merged.SearchRecency,
		DisableSearch:       !wantsSearch(tools, opts),
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	_, body, err := webclient.DoWithRetry(ctx, c.retries+1, time.Second, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, b, fmt.Errorf("status %d: %s", resp.StatusCode, webclient.Truncate(b, 512))
		}
		return resp.StatusCode, b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("perplexity API error: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		log.Printf("perplexity: failed to decode response body=%s", webclient.Truncate(body, 1024))
		return nil, fmt.Errorf("perplexity: %w: %v", core.ErrMalformedResponse, err)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("perplexity: %w: no choices", core.ErrMalformedResponse)
	}

	citations := append([]string(nil), result.Citations...)
	for _, sr := range result.SearchResults {
		citations = append(citations, sr.URL)
	}
	model := result.Model
	if model == "" {
		model = merged.Model
	}
	log.Printf("perplexity: completion id=%s model=%s citations=%d took=%s", result.ID, model, len(citations), time.Since(started).Round(time.Millisecond))

	return &core.Response{
		Text:      result.Choices[0].Message.Content,
		Citations: core.DedupeCitations(citations),
		Model:     model,
	}, nil
}

func wantsSearch(tools []core.Tool, opts core.Options) bool {
	if opts.EnableWebSearch {
		return true
	}
	if len(tools) == 0 {
		return true
	}
	for _, t := range tools {
		if strings.EqualFold(t.Type, "web_search") {
			return true
		}
	}
	return false
}

func (c *client) merge(opts core.Options) core.Options {
	out := c.defaults
	if opts.Model != "" {
		out.Model = opts.Model
	}
	if opts.Temperature != 0 {
		out.Temperature = opts.Temperature
	}
	if opts.TopP != 0 {
		out.TopP = opts.TopP
	}
	if opts.MaxCompletionTokens != 0 {
		out.MaxCompletionTokens = opts.MaxCompletionTokens
	}
	if opts.SystemPrompt != "" {
		out.SystemPrompt = opts.SystemPrompt
	}
	if opts.SearchRecency != "" {
		out.SearchRecency = opts.SearchRecency
	}
	return out
}

func valueOrDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}
func orInt(v, d int) int {
	if v != 0 {
		return v
	}
	return d
}
func orFloat(v, d float64) float64 {
	if v != 0 {
		return v
	}
	return d
}
