package verification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/stake-plus/validai/src/ai/core"
	"github.com/stake-plus/validai/src/config"
	"github.com/stake-plus/validai/src/logging"
	"github.com/stake-plus/validai/src/mediabias"
	"github.com/stake-plus/validai/src/types"
)

const recordTimeout = 5 * time.Second

// Scraper fetches the readable content of a page. The context carries the scraping deadline.
type Scraper interface {
	Fetch(ctx context.Context, url string) (*types.ScrapingResult, error)
}

// Recorder persists or publishes finished envelopes.
type Recorder interface {
	Record(ctx context.Context, resp *types.VerificationResponse) error
}

// Verifier runs one verification per call. It holds no per-request state and is safe for concurrent use.
type Verifier struct {
	settings    config.Settings
	reasoner    core.Client
	reasonerErr error
	scraper     Scraper
	recorder    Recorder
}

type Option func(*Verifier)

// WithRecorder attaches a recorder that sees every envelope.
func WithRecorder(r Recorder) Option {
	return func(v *Verifier) { v.recorder = r }
}

// WithReasonerError records why no reasoner could be built; it is reported when a verification needs one.
func WithReasonerError(err error) Option {
	return func(v *Verifier) { v.reasonerErr = err }
}

// New builds a verifier. reasoner may be nil when the provider credential is missing.
func New(settings config.Settings, reasoner core.Client, scraper Scraper, opts ...Option) *Verifier {
	v := &Verifier{settings: settings, reasoner: reasoner, scraper: scraper}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewFromSettings builds the configured reasoning provider and wires it in. A missing credential
// is not an error here; verifications will report PROVIDER_NOT_CONFIGURED instead.
func NewFromSettings(settings config.Settings, scraper Scraper, opts ...Option) *Verifier {
	reasoner, err := core.NewClient(core.FactoryConfig{
		Provider:     settings.AIProvider,
		Model:        settings.AIModel,
		SystemPrompt: settings.SystemPromptTemplate,
		APIKey:       settings.ProviderKey(),
		BaseURL:      providerBaseURL(settings),
		Timeout:      settings.APITimeout,
		MaxRetries:   settings.APIMaxRetries,
	})
	if err != nil {
		log.Printf("verifier: reasoning provider %q unavailable: %v", settings.AIProvider, err)
		reasoner = nil
		opts = append(opts, WithReasonerError(err))
	}
	return New(settings, reasoner, scraper, opts...)
}

func providerBaseURL(s config.Settings) string {
	if s.AIProvider == "" || s.AIProvider == "perplexity" || s.AIProvider == "pplx" || s.AIProvider == "sonar" {
		return s.PerplexityBaseURL
	}
	return ""
}

// ReasoningReady reports whether a reasoning provider is wired in.
func (v *Verifier) ReasoningReady() bool { return v.reasoner != nil }

// Verify validates, optionally scrapes, asks the reasoning provider and normalizes the answer.
// It always returns an envelope and never panics.
func (v *Verifier) Verify(ctx context.Context, req types.VerificationRequest) (resp *types.VerificationResponse) {
	started := time.Now()
	meta := types.Metadata{
		"input_type": types.MetaString(req.InputType()),
	}
	if id := RequestID(ctx); id != "" {
		meta["request_id"] = types.MetaString(id)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("verifier: panic: %v\n%s", r, debug.Stack())
			meta["elapsed_ms"] = types.MetaInt(int(time.Since(started).Milliseconds()))
			resp = v.failure(req, &VerificationError{Code: CodeInternal, Message: "internal error while verifying"}, meta)
		}
		v.record(ctx, resp)
	}()

	result, err := v.run(ctx, req, meta)
	meta["elapsed_ms"] = types.MetaInt(int(time.Since(started).Milliseconds()))
	if err != nil {
		log.Printf("verifier: %s verification failed: %v", req.InputType(), err)
		return v.failure(req, err, meta)
	}
	out, err := types.NewSuccessResponse(req, result, meta)
	if err != nil {
		return v.failure(req, &VerificationError{Code: CodeInternal, Message: "could not build response", Err: err}, meta)
	}
	return out
}

func (v *Verifier) run(ctx context.Context, req types.VerificationRequest, meta types.Metadata) (*types.VerificationResult, error) {
	if err := Validate(req, v.settings.MaxTextLength); err != nil {
		return nil, err
	}
	if v.reasoner == nil {
		return nil, &VerificationError{
			Code:    CodeProviderNotConfigured,
			Message: "reasoning provider credential is not configured",
			Err:     v.reasonerErr,
		}
	}

	content := strings.TrimSpace(req.Text)
	sourceURL := req.URL
	if req.HasURL() && !req.HasText() {
		page, err := v.scrape(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		content = page.Content
		meta["scraped"] = types.MetaBool(true)
		if page.Title != "" {
			meta["scraped_title"] = types.MetaString(page.Title)
		}
	} else {
		meta["scraped"] = types.MetaBool(false)
	}
	meta["content_fingerprint"] = types.MetaString(Fingerprint(content))

	content, truncated := TruncateContent(content, v.settings.MaxTextLength)
	if truncated {
		meta["content_truncated"] = types.MetaBool(true)
	}

	prompt := BuildPrompt(v.settings.SystemPromptTemplate, content, sourceURL)
	answer, err := v.ask(ctx, prompt)
	if err != nil {
		return nil, err
	}
	meta["provider"] = types.MetaString(v.reasoner.Name())
	if answer.Model != "" {
		meta["model"] = types.MetaString(answer.Model)
	}
	meta["citations"] = types.MetaInt(len(answer.Citations))

	parsed, err := ParseAnswer(answer.Text)
	if err != nil {
		return nil, err
	}
	if parsed.Clamped {
		log.Printf("verifier: confidence %.1f clamped to %d", parsed.ConfidenceRaw, parsed.Confidence)
		meta["confidence_clamped"] = types.MetaBool(true)
	}

	result, err := types.NewResult(parsed.Classification, parsed.Confidence)
	if err != nil {
		return nil, &VerificationError{Code: CodeMalformedAnswer, Message: "answer could not be normalized", Err: err}
	}
	result.Explanation = parsed.Explanation
	result.TemporalContext = parsed.TemporalContext
	result.DetectedBias = parsed.DetectedBias
	result.Observations = parsed.Observations

	sources := parsed.Sources
	if len(sources) == 0 {
		sources = sourcesFromCitations(answer.Citations)
	}
	kept, dropped := limitSources(sources, v.settings.MaxSourcesPerVerification)
	if dropped > 0 {
		meta["sources_dropped"] = types.MetaInt(dropped)
	}
	result.Sources = annotateBias(kept, meta)

	meta["below_confidence_threshold"] = types.MetaBool(result.ConfidencePercentage() < v.settings.MinConfidenceThreshold)
	return result, nil
}

func (v *Verifier) scrape(ctx context.Context, pageURL string) (*types.ScrapingResult, error) {
	if v.scraper == nil {
		return nil, &VerificationError{Code: CodeScrapingFailed, Message: "scraping failed: no scraper available"}
	}
	sctx, cancel := context.WithTimeout(ctx, v.settings.ScrapingTimeout)
	defer cancel()

	page, err := v.scraper.Fetch(sctx, pageURL)
	if err != nil {
		msg := "scraping failed: " + err.Error()
		if logging.IsTimeout(err) || errors.Is(sctx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("scraping failed: timed out after %s", v.settings.ScrapingTimeout)
		}
		return nil, &VerificationError{Code: CodeScrapingFailed, Message: msg, Err: err}
	}
	if page == nil || strings.TrimSpace(page.Content) == "" {
		return nil, &VerificationError{Code: CodeScrapingFailed, Message: "scraping failed: page has no readable content"}
	}
	return page, nil
}

func (v *Verifier) ask(ctx context.Context, prompt Prompt) (*core.Response, error) {
	rctx, cancel := context.WithTimeout(ctx, v.settings.APITimeout)
	defer cancel()

	answer, err := v.reasoner.Respond(rctx, prompt.User, []core.Tool{{Type: "web_search"}}, core.Options{
		SystemPrompt:    prompt.System,
		EnableWebSearch: true,
	})
	switch {
	case err == nil && answer != nil:
		return answer, nil
	case err == nil:
		return nil, &VerificationError{Code: CodeMalformedAnswer, Message: "reasoning provider returned no answer"}
	case errors.Is(err, core.ErrNotConfigured):
		return nil, &VerificationError{Code: CodeProviderNotConfigured, Message: "reasoning provider credential is not configured", Err: err}
	case logging.IsTimeout(err) || errors.Is(rctx.Err(), context.DeadlineExceeded):
		return nil, &VerificationError{
			Code:    CodeReasoningTimeout,
			Message: fmt.Sprintf("reasoning provider timed out after %s", v.settings.APITimeout),
			Err:     err,
		}
	case errors.Is(err, core.ErrMalformedResponse):
		return nil, &VerificationError{Code: CodeMalformedAnswer, Message: "reasoning provider returned a malformed answer", Err: err}
	default:
		msg := "reasoning provider request failed"
		if logging.IsRateLimit(err) {
			msg = "reasoning provider rate limited the request"
		}
		return nil, &VerificationError{Code: CodeReasoningFailed, Message: msg, Err: err}
	}
}

func (v *Verifier) failure(req types.VerificationRequest, err error, meta types.Metadata) *types.VerificationResponse {
	code, status, message := string(CodeInternal), 500, "internal error while verifying"
	var verr *ValidationError
	var ferr *VerificationError
	switch {
	case errors.As(err, &verr):
		code, status, message = string(verr.Code), verr.StatusCode(), verr.Message
	case errors.As(err, &ferr):
		code, status, message = string(ferr.Code), ferr.StatusCode(), ferr.Message
	}
	out, buildErr := types.NewErrorResponse(req, message, code, status, meta)
	if buildErr != nil {
		out, _ = types.NewErrorResponse(req, "internal error while verifying", string(CodeInternal), 500, meta)
	}
	return out
}

func (v *Verifier) record(ctx context.Context, resp *types.VerificationResponse) {
	if v.recorder == nil || resp == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("verifier: recorder panic: %v\n%s", r, debug.Stack())
		}
	}()
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := v.recorder.Record(rctx, resp); err != nil {
		log.Printf("verifier: record failed: %v", err)
	}
}

func sourcesFromCitations(citations []string) []types.SourceInfo {
	out := make([]types.SourceInfo, 0, len(citations))
	for _, c := range citations {
		name := c
		if u, err := url.Parse(c); err == nil && u.Hostname() != "" {
			name = strings.TrimPrefix(u.Hostname(), "www.")
		}
		out = append(out, types.SourceInfo{Name: name, URL: c, Description: "Cited by the reasoning provider"})
	}
	return out
}

// limitSources keeps the first max sources in the order the provider listed them.
func limitSources(sources []types.SourceInfo, max int) ([]types.SourceInfo, int) {
	if max <= 0 || len(sources) <= max {
		return sources, 0
	}
	return sources[:max], len(sources) - max
}

func annotateBias(sources []types.SourceInfo, meta types.Metadata) []types.SourceInfo {
	out := make([]types.SourceInfo, len(sources))
	biases := make([]mediabias.Bias, len(sources))
	for i, s := range sources {
		if s.Name == "" {
			s.Name = "Unknown source"
			if u, err := url.Parse(s.URL); err == nil && u.Hostname() != "" {
				s.Name = strings.TrimPrefix(u.Hostname(), "www.")
			}
		}
		b := mediabias.Classify(s.URL, s.Name)
		s.PoliticalBias = string(b)
		biases[i] = b
		out[i] = s
	}
	if len(out) > 0 {
		d := mediabias.Distribute(biases)
		meta["bias_distribution"] = types.MetaMap(types.Metadata{
			"left":    types.MetaInt(d.Left),
			"center":  types.MetaInt(d.Center),
			"right":   types.MetaInt(d.Right),
			"unknown": types.MetaInt(d.Unknown),
		})
	}
	return out
}
