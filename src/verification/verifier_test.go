package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stake-plus/validai/src/ai/core"
	"github.com/stake-plus/validai/src/config"
	"github.com/stake-plus/validai/src/types"
)

type fakeReasoner struct {
	text      string
	citations []string
	err       error
	block     bool
	panics    bool

	mu     sync.Mutex
	calls  int
	prompt string
	system string
}

func (f *fakeReasoner) Name() string { return "fake" }

func (f *fakeReasoner) Respond(ctx context.Context, input string, tools []core.Tool, opts core.Options) (*core.Response, error) {
	f.mu.Lock()
	f.calls++
	f.prompt = input
	f.system = opts.SystemPrompt
	f.mu.Unlock()
	if f.panics {
		panic("provider exploded")
	}
	if f.block {
		<-ctx.Done()
		return nil, fmt.Errorf("fake: %w", ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	return &core.Response{Text: f.text, Citations: f.citations, Model: "fake-model"}, nil
}

type fakeScraper struct {
	page  *types.ScrapingResult
	err   error
	block bool
	calls int
}

func (f *fakeScraper) Fetch(ctx context.Context, url string) (*types.ScrapingResult, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.page, f.err
}

type recorderFunc func(ctx context.Context, resp *types.VerificationResponse) error

func (f recorderFunc) Record(ctx context.Context, resp *types.VerificationResponse) error {
	return f(ctx, resp)
}

func testSettings() config.Settings {
	s := config.Defaults()
	s.APITimeout = time.Second
	s.ScrapingTimeout = time.Second
	return s
}

const falseAnswer = `{"classification":"FALSE","confidence_percentage":85,"explanation":"The claim is not supported.",
"temporal_context":"Current as of 2024.","detected_bias":"Sensationalist framing.","observations":"None.",
"sources":[{"name":"IBGE","url":"https://www.ibge.gov.br/x","description":"Official statistics"},
{"name":"Brasil de Fato","url":"https://www.brasildefato.com.br/y","description":"Report"}]}`

func TestVerifySuccess(t *testing.T) {
	reasoner := &fakeReasoner{text: falseAnswer}
	v := New(testSettings(), reasoner, nil)

	ctx := WithRequestID(context.Background(), "req-1")
	resp := v.Verify(ctx, types.VerificationRequest{Text: "Vaccines contain microchips"})

	if resp.Status() != types.StatusSuccess {
		t.Fatalf("status = %s (%s)", resp.Status(), resp.ErrorMessage())
	}
	result, ok := resp.Result()
	if !ok {
		t.Fatal("missing result")
	}
	if result.Classification != types.ClassificationFalse || result.ConfidencePercentage() != 85 {
		t.Fatalf("unexpected verdict %s %d", result.Classification, result.ConfidencePercentage())
	}
	if result.ConfidenceLevel() != types.ConfidenceHigh {
		t.Fatalf("level = %s", result.ConfidenceLevel())
	}
	if len(result.Sources) != 2 {
		t.Fatalf("sources = %+v", result.Sources)
	}
	if result.Sources[0].PoliticalBias != "CENTER" || result.Sources[1].PoliticalBias != "LEFT" {
		t.Fatalf("bias not annotated: %+v", result.Sources)
	}
	if !strings.Contains(reasoner.prompt, "Vaccines contain microchips") || reasoner.system == "" {
		t.Fatalf("prompt not built: %q / %q", reasoner.prompt, reasoner.system)
	}

	meta := resp.Metadata()
	if id, _ := meta["request_id"].AsString(); id != "req-1" {
		t.Fatalf("request id = %q", id)
	}
	if p, _ := meta["provider"].AsString(); p != "fake" {
		t.Fatalf("provider = %q", p)
	}
	if below, ok := meta["below_confidence_threshold"].AsBool(); !ok || below {
		t.Fatalf("below_confidence_threshold = %v,%v", below, ok)
	}
	if _, ok := meta["bias_distribution"].AsMap(); !ok {
		t.Fatal("missing bias distribution")
	}
	if _, ok := meta["elapsed_ms"].AsNumber(); !ok {
		t.Fatal("missing elapsed_ms")
	}
}

func TestVerifyScrapesURL(t *testing.T) {
	reasoner := &fakeReasoner{text: `{"classification":"TRUE","confidence_percentage":65}`}
	scraper := &fakeScraper{page: &types.ScrapingResult{URL: "https://g1.globo.com/a", Title: "Headline", Content: "Page body text about the claim"}}
	v := New(testSettings(), reasoner, scraper)

	resp := v.Verify(context.Background(), types.VerificationRequest{URL: "https://g1.globo.com/a"})
	if resp.Status() != types.StatusSuccess {
		t.Fatalf("status = %s (%s)", resp.Status(), resp.ErrorMessage())
	}
	if scraper.calls != 1 {
		t.Fatalf("scraper calls = %d", scraper.calls)
	}
	if !strings.Contains(reasoner.prompt, "Page body text") || !strings.Contains(reasoner.prompt, "Source URL: https://g1.globo.com/a") {
		t.Fatalf("prompt = %q", reasoner.prompt)
	}
	if title, _ := resp.Metadata()["scraped_title"].AsString(); title != "Headline" {
		t.Fatalf("scraped_title = %q", title)
	}
	result, _ := resp.Result()
	if result.ConfidenceLevel() != types.ConfidenceMedium {
		t.Fatalf("level = %s", result.ConfidenceLevel())
	}
}

func TestVerifyDoesNotScrapeWhenTextPresent(t *testing.T) {
	reasoner := &fakeReasoner{text: `{"classification":"TRUE","confidence_percentage":65}`}
	scraper := &fakeScraper{err: errors.New("should not be called")}
	v := New(testSettings(), reasoner, scraper)

	resp := v.Verify(context.Background(), types.VerificationRequest{Text: "claim", URL: "https://example.com"})
	if resp.Status() != types.StatusSuccess || scraper.calls != 0 {
		t.Fatalf("status = %s scraper calls = %d", resp.Status(), scraper.calls)
	}
}

func TestVerifyFailures(t *testing.T) {
	tests := []struct {
		name       string
		req        types.VerificationRequest
		reasoner   *fakeReasoner
		scraper    *fakeScraper
		settings   func(*config.Settings)
		wantCode   Code
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "missing input",
			req:        types.VerificationRequest{},
			reasoner:   &fakeReasoner{},
			wantCode:   CodeMissingInput,
			wantStatus: 400,
		},
		{
			name:       "text too long",
			req:        types.VerificationRequest{Text: strings.Repeat("x", 10001)},
			reasoner:   &fakeReasoner{},
			wantCode:   CodeTextTooLong,
			wantStatus: 400,
		},
		{
			name:       "scraping timeout",
			req:        types.VerificationRequest{URL: "https://slow.example/article"},
			reasoner:   &fakeReasoner{text: falseAnswer},
			scraper:    &fakeScraper{block: true},
			settings:   func(s *config.Settings) { s.ScrapingTimeout = 20 * time.Millisecond },
			wantCode:   CodeScrapingFailed,
			wantStatus: 500,
			wantMsg:    "scraping failed",
		},
		{
			name:       "scraper error",
			req:        types.VerificationRequest{URL: "https://blocked.example"},
			reasoner:   &fakeReasoner{text: falseAnswer},
			scraper:    &fakeScraper{err: errors.New("access denied")},
			wantCode:   CodeScrapingFailed,
			wantStatus: 500,
			wantMsg:    "scraping failed: access denied",
		},
		{
			name:       "empty page",
			req:        types.VerificationRequest{URL: "https://empty.example"},
			reasoner:   &fakeReasoner{text: falseAnswer},
			scraper:    &fakeScraper{page: &types.ScrapingResult{Content: "  "}},
			wantCode:   CodeScrapingFailed,
			wantStatus: 500,
		},
		{
			name:       "unparseable label",
			req:        types.VerificationRequest{Text: "claim"},
			reasoner:   &fakeReasoner{text: `{"classification":"MAYBE","confidence_percentage":50}`},
			wantCode:   CodeUnparseableClassification,
			wantStatus: 500,
		},
		{
			name:       "reasoning timeout",
			req:        types.VerificationRequest{Text: "claim"},
			reasoner:   &fakeReasoner{block: true},
			settings:   func(s *config.Settings) { s.APITimeout = 20 * time.Millisecond },
			wantCode:   CodeReasoningTimeout,
			wantStatus: 500,
		},
		{
			name:       "malformed provider payload",
			req:        types.VerificationRequest{Text: "claim"},
			reasoner:   &fakeReasoner{err: fmt.Errorf("fake: %w", core.ErrMalformedResponse)},
			wantCode:   CodeMalformedAnswer,
			wantStatus: 500,
		},
		{
			name:       "upstream failure",
			req:        types.VerificationRequest{Text: "claim"},
			reasoner:   &fakeReasoner{err: errors.New("status 502: bad gateway")},
			wantCode:   CodeReasoningFailed,
			wantStatus: 500,
		},
		{
			name:       "provider panic",
			req:        types.VerificationRequest{Text: "claim"},
			reasoner:   &fakeReasoner{panics: true},
			wantCode:   CodeInternal,
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings()
			if tt.settings != nil {
				tt.settings(&s)
			}
			var scraper Scraper
			if tt.scraper != nil {
				scraper = tt.scraper
			}
			v := New(s, tt.reasoner, scraper)
			resp := v.Verify(context.Background(), tt.req)

			if resp.Status() != types.StatusError {
				t.Fatalf("status = %s", resp.Status())
			}
			if resp.ErrorCode() != string(tt.wantCode) {
				t.Fatalf("code = %s, want %s (%s)", resp.ErrorCode(), tt.wantCode, resp.ErrorMessage())
			}
			if resp.StatusCode() != tt.wantStatus {
				t.Fatalf("http status = %d, want %d", resp.StatusCode(), tt.wantStatus)
			}
			if tt.wantMsg != "" && !strings.Contains(resp.ErrorMessage(), tt.wantMsg) {
				t.Fatalf("message %q does not contain %q", resp.ErrorMessage(), tt.wantMsg)
			}
			if _, ok := resp.Result(); ok {
				t.Fatal("error envelope must not carry a result")
			}
			if tt.wantCode == CodeScrapingFailed && tt.reasoner.calls != 0 {
				t.Fatalf("reasoner called %d times after scraping failure", tt.reasoner.calls)
			}
		})
	}
}

func TestVerifyWithoutProvider(t *testing.T) {
	v := NewFromSettings(testSettings(), nil)
	if v.ReasoningReady() {
		t.Fatal("no credential should leave the reasoner unset")
	}
	resp := v.Verify(context.Background(), types.VerificationRequest{Text: "claim"})
	if resp.ErrorCode() != string(CodeProviderNotConfigured) || resp.StatusCode() != 500 {
		t.Fatalf("got %s %d", resp.ErrorCode(), resp.StatusCode())
	}
}

func TestVerifyLimitsSources(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"classification":"TRUE","confidence_percentage":40,"sources":[`)
	for i := 0; i < 7; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"name":"S%d","url":"https://s%d.example","description":"d"}`, i, i)
	}
	b.WriteString(`]}`)

	v := New(testSettings(), &fakeReasoner{text: b.String()}, nil)
	resp := v.Verify(context.Background(), types.VerificationRequest{Text: "claim"})
	result, ok := resp.Result()
	if !ok {
		t.Fatalf("expected success, got %s", resp.ErrorMessage())
	}
	if len(result.Sources) != 5 {
		t.Fatalf("sources = %d, want 5", len(result.Sources))
	}
	for i, s := range result.Sources {
		if s.Name != fmt.Sprintf("S%d", i) {
			t.Fatalf("source %d = %s, order not preserved", i, s.Name)
		}
	}
	if n, _ := resp.Metadata()["sources_dropped"].AsNumber(); n != 2 {
		t.Fatalf("sources_dropped = %v", n)
	}
	if below, _ := resp.Metadata()["below_confidence_threshold"].AsBool(); !below {
		t.Fatal("40 is below the default threshold")
	}
	if result.ConfidenceLevel() != types.ConfidenceLow {
		t.Fatalf("level = %s", result.ConfidenceLevel())
	}
}

func TestVerifyFallsBackToCitations(t *testing.T) {
	reasoner := &fakeReasoner{
		text:      `{"classification":"PARTIALLY_TRUE","confidence_percentage":140}`,
		citations: []string{"https://www.gazetadopovo.com.br/a", "https://unknown.example/b"},
	}
	v := New(testSettings(), reasoner, nil)
	resp := v.Verify(context.Background(), types.VerificationRequest{Text: "claim"})
	result, ok := resp.Result()
	if !ok {
		t.Fatalf("expected success, got %s", resp.ErrorMessage())
	}
	if result.ConfidencePercentage() != 100 {
		t.Fatalf("confidence = %d, want clamped 100", result.ConfidencePercentage())
	}
	if len(result.Sources) != 2 || result.Sources[0].Name != "gazetadopovo.com.br" || result.Sources[0].PoliticalBias != "RIGHT" {
		t.Fatalf("sources = %+v", result.Sources)
	}
	if clamped, _ := resp.Metadata()["confidence_clamped"].AsBool(); !clamped {
		t.Fatal("expected confidence_clamped")
	}
}

func TestVerifyRecordsEveryEnvelope(t *testing.T) {
	var mu sync.Mutex
	var seen []types.ResponseStatus
	rec := recorderFunc(func(ctx context.Context, resp *types.VerificationResponse) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, resp.Status())
		return errors.New("storage down")
	})
	v := New(testSettings(), &fakeReasoner{text: falseAnswer}, nil, WithRecorder(rec))

	v.Verify(context.Background(), types.VerificationRequest{Text: "claim"})
	v.Verify(context.Background(), types.VerificationRequest{})

	if len(seen) != 2 || seen[0] != types.StatusSuccess || seen[1] != types.StatusError {
		t.Fatalf("recorded = %v", seen)
	}
}

func TestVerifySurvivesPanickingRecorder(t *testing.T) {
	rec := recorderFunc(func(context.Context, *types.VerificationResponse) error {
		panic("history backend exploded")
	})
	v := New(testSettings(), &fakeReasoner{text: falseAnswer}, nil, WithRecorder(rec))

	resp := v.Verify(context.Background(), types.VerificationRequest{Text: "claim"})
	if resp == nil || resp.Status() != types.StatusSuccess {
		t.Fatalf("resp = %+v", resp)
	}
	resp = v.Verify(context.Background(), types.VerificationRequest{})
	if resp == nil || resp.Status() != types.StatusError {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestTruncateContent(t *testing.T) {
	out, cut := TruncateContent("ããããã", 3)
	if !cut || !strings.HasPrefix(out, "ããã") || !strings.HasSuffix(out, truncationMarker) {
		t.Fatalf("unexpected %q %v", out, cut)
	}
	if out, cut := TruncateContent("abc", 3); cut || out != "abc" {
		t.Fatalf("unexpected %q %v", out, cut)
	}
}

func TestFingerprintNormalizesWhitespaceAndCase(t *testing.T) {
	a := Fingerprint("The  Sky\nis Blue")
	b := Fingerprint("the sky is blue")
	if a != b || len(a) != 16 {
		t.Fatalf("fingerprints differ: %s %s", a, b)
	}
}
