package scraper

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

	"github.com/stake-plus/validai/src/webclient"
)

const articleHTML = `<!doctype html>
<html lang="pt-BR">
<head>
  <title>Fallback title</title>
  <meta property="og:title" content="Governo anuncia novo programa">
  <meta name="description" content="Resumo da notícia">
  <meta property="og:site_name" content="Portal Teste">
  <script>var tracking = "ignore me";</script>
</head>
<body>
  <nav>Menu Início Política Economia</nav>
  <article class="materia-conteudo">
    <h1>Governo anuncia novo programa</h1>
    <p>Primeiro parágrafo com conteúdo importante sobre o programa social anunciado nesta segunda-feira.</p>
    <p>Segundo parágrafo com mais informações &amp; detalhes sobre o orçamento previsto para o próximo ano.</p>
    <p>Terceiro parágrafo explica quais famílias poderão participar e quais documentos serão exigidos.</p>
  </article>
  <footer>Todos os direitos reservados</footer>
</body>
</html>`

func TestFetchDirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != webclient.BrowserUserAgent {
			t.Errorf("expected browser user agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	c := New(Config{Timeout: 5 * time.Second, AllowPrivateNetworks: true})
	page, err := c.Fetch(context.Background(), srv.URL+"/noticia")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Title != "Governo anuncia novo programa" {
		t.Fatalf("title = %q", page.Title)
	}
	if !strings.Contains(page.Content, "Primeiro parágrafo com conteúdo importante") {
		t.Fatalf("content = %q", page.Content)
	}
	if !strings.Contains(page.Content, "mais informações & detalhes") {
		t.Fatalf("entities not unescaped: %q", page.Content)
	}
	if strings.Contains(page.Content, "ignore me") || strings.Contains(page.Content, "<p>") {
		t.Fatalf("markup leaked into content: %q", page.Content)
	}
	if page.Metadata["description"] != "Resumo da notícia" || page.Metadata["site_name"] != "Portal Teste" {
		t.Fatalf("metadata = %v", page.Metadata)
	}
	if page.ScrapedAt.IsZero() {
		t.Fatal("scraped_at not set")
	}
}

func TestFetchDirectFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "forbidden", status: http.StatusForbidden, body: "no", wantErr: ErrBlocked},
		{name: "not found", status: http.StatusNotFound, body: "no", wantErr: ErrBlocked},
		{
			name:    "error page served with 200",
			status:  http.StatusOK,
			body:    "<html><head><title>Página não encontrada</title></head><body><h1>Erro</h1><p>O conteúdo que você procura não existe mais neste portal.</p></body></html>",
			wantErr: ErrBlocked,
		},
		{name: "too short", status: http.StatusOK, body: "<html><body><p>Oi tudo bem</p></body></html>", wantErr: ErrEmptyContent},
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

			c := New(Config{Timeout: 5 * time.Second, MaxRetries: 2, AllowPrivateNetworks: true})
			_, err := c.Fetch(context.Background(), srv.URL)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if n := atomic.LoadInt32(&calls); n != 1 {
				t.Fatalf("calls = %d, want 1", n)
			}
		})
	}
}

func TestFetchDirectRefusesPrivateAddresses(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	c := New(Config{Timeout: 5 * time.Second, MaxRetries: 2})
	for _, target := range []string{srv.URL + "/noticia", "http://169.254.169.254/latest/meta-data/", "http://[::1]:9/"} {
		_, err := c.Fetch(context.Background(), target)
		if !errors.Is(err, ErrBlocked) || !errors.Is(err, webclient.ErrPrivateAddress) {
			t.Fatalf("%s: err = %v", target, err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("private server was reached %d times", n)
	}
}

func TestFetchHonoursDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{AllowPrivateNetworks: true})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Fetch(ctx, srv.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestFetchFirecrawl(t *testing.T) {
	var got firecrawlRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scrape" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer fc-test" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"markdown":"# Título\n\nTexto da matéria com bastante conteúdo relevante para a checagem de fatos.",
			"metadata":{"title":"Título da matéria","description":"Resumo","language":"pt-BR","statusCode":200}}}`))
	}))
	defer srv.Close()

	c := New(Config{FirecrawlAPIKey: "fc-test", FirecrawlBaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	if !c.UsesFirecrawl() {
		t.Fatal("expected firecrawl mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	page, err := c.Fetch(ctx, "https://g1.globo.com/materia")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.URL != "https://g1.globo.com/materia" || !got.OnlyMainContent || len(got.Formats) != 1 || got.Formats[0] != "markdown" {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Timeout <= 0 {
		t.Fatalf("deadline not forwarded: %+v", got)
	}
	if page.Title != "Título da matéria" || !strings.Contains(page.Content, "Texto da matéria") {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Metadata["extractor"] != "firecrawl" || page.Metadata["language"] != "pt-BR" {
		t.Fatalf("metadata = %v", page.Metadata)
	}
}

func TestFetchFirecrawlFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"unsupported site"}`))
	}))
	defer srv.Close()

	c := New(Config{FirecrawlAPIKey: "fc-test", FirecrawlBaseURL: srv.URL})
	_, err := c.Fetch(context.Background(), "https://example.com")
	if err == nil || !strings.Contains(err.Error(), "unsupported site") {
		t.Fatalf("err = %v", err)
	}
}

func TestCheckQuality(t *testing.T) {
	long := strings.Repeat("palavra ", 200) + "forbidden"
	tests := []struct {
		name, title, content string
		want                 error
	}{
		{"ok", "Notícia", "Texto com várias palavras relevantes sobre economia brasileira", nil},
		{"short", "", "um dois", ErrEmptyContent},
		{"maintenance", "Site em manutenção", "Voltaremos em breve com nosso conteúdo normal para você", ErrBlocked},
		{"access denied", "", "Access denied. You don't have permission to view this page here", ErrBlocked},
		{"long article mentioning forbidden", "", long, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkQuality(tt.title, tt.content)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
