package perplexity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stake-plus/validai/src/ai/core"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := core.NewClient(core.FactoryConfig{Provider: "perplexity"})
	if !errors.Is(err, core.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRespond(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer pplx-test" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"r1","model":"sonar-pro","choices":[{"message":{"role":"assistant","content":"{\"classification\":\"TRUE\"}"}}],
			"citations":["https://a.example","https://b.example"],
			"search_results":[{"title":"A","url":"https://a.example"},{"title":"C","url":"https://c.example"}]}`))
	}))
	defer srv.Close()

	c, err := core.NewClient(core.FactoryConfig{Provider: "perplexity", APIKey: "pplx-test", BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Respond(context.Background(), "Analyze this", nil, core.Options{SystemPrompt: "be careful"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resp.Text != `{"classification":"TRUE"}` {
		t.Fatalf("text = %q", resp.Text)
	}
	if strings.Join(resp.Citations, ",") != "https://a.example,https://b.example,https://c.example" {
		t.Fatalf("citations = %v", resp.Citations)
	}
	if got.Model != "sonar-pro" || got.Temperature != 0.2 || got.TopP != 0.9 || got.MaxTokens != 2000 {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.SearchRecencyFilter != "month" || got.DisableSearch {
		t.Fatalf("search settings not sent: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "Analyze this" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestRespondErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
		malformed bool
	}{
		{name: "client error is not retried", status: http.StatusUnauthorized, body: `{"error":"bad key"}`, wantCalls: 1},
		{name: "empty choices", status: http.StatusOK, body: `{"choices":[]}`, wantCalls: 1, malformed: true},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantCalls: 1, malformed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := core.NewClient(core.FactoryConfig{Provider: "pplx", APIKey: "k", BaseURL: srv.URL, MaxRetries: 2})
			if err != nil {
				t.Fatal(err)
			}
			_, err = c.Respond(context.Background(), "x", nil, core.Options{})
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, core.ErrMalformedResponse) != tt.malformed {
				t.Fatalf("malformed = %v for %v", !tt.malformed, err)
			}
			if n := atomic.LoadInt32(&calls); n != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestRespondHonoursDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := core.NewClient(core.FactoryConfig{Provider: "perplexity", APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Respond(ctx, "x", nil, core.Options{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
