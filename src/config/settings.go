package config

import (
	"strings"
	"time"
)

const (
	ServiceName    = "ValidaÍ"
	ServiceVersion = "1.0.0"

	DefaultPerplexityBaseURL = "https://api.perplexity.ai"
	DefaultFirecrawlBaseURL  = "https://api.firecrawl.dev"
)

// DefaultSystemPrompt instructs the reasoning provider how to research and how to answer.
const DefaultSystemPrompt = `You are ValidaÍ, a Brazilian fact-checking specialist fighting misinformation.

VERIFICATION METHOD:
1. Always consult several independent sources (at least 3)
2. Prefer official sources: government bodies, universities, established newsrooms
3. Analyse the temporal context of the information
4. Point out possible bias or incomplete information
5. Grade your conclusion with a confidence percentage

ANSWER WITH A SINGLE JSON OBJECT AND NOTHING ELSE:
{
  "classification": "TRUE | FALSE | PARTIALLY_TRUE | NOT_VERIFIABLE",
  "confidence_percentage": 0-100,
  "explanation": "clear, didactic analysis in Brazilian Portuguese",
  "temporal_context": "when the information is or was true",
  "detected_bias": "political, commercial or ideological leanings",
  "sources": [{"name": "...", "url": "...", "year": 2024, "description": "...", "reliability_score": 0-100}],
  "observations": "limitations of this verification"
}

GUIDELINES:
- Use simple, accessible language
- Be empathetic and never judge the user
- Explain why you reached the conclusion
- Always cite the sources you used
- Be transparent about limitations
- Do not give specific medical advice
- Stay politically neutral`

// DefaultNewsFeeds are polled for the trending news panel.
var DefaultNewsFeeds = []string{
	"https://g1.globo.com/rss/g1/",
	"https://feeds.folha.uol.com.br/emcimadahora/rss091.xml",
	"https://www.cnnbrasil.com.br/feed/",
}

// Settings is built once at startup and handed to every component. It is never mutated after Load.
type Settings struct {
	PerplexityAPIKey  string
	FirecrawlAPIKey   string
	OpenAIAPIKey      string
	PerplexityBaseURL string
	FirecrawlBaseURL  string

	AIProvider string
	AIModel    string

	// Advisory only; nothing enforces them.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	APITimeout      time.Duration
	ScrapingTimeout time.Duration
	APIMaxRetries   int

	// Direct page fetches refuse loopback and private addresses unless set.
	ScrapeAllowPrivate bool

	Debug       bool
	Environment string
	Port        string

	MaxTextLength             int
	MinConfidenceThreshold    int
	MaxSourcesPerVerification int
	SystemPromptTemplate      string

	MySQLDSN    string
	RedisURL    string
	CORSOrigins []string
	NewsFeeds   []string

	// TLS is served when both are set.
	SSLCert string
	SSLKey  string
}

// Load resolves every setting through the loader.
func Load(l Loader) Settings {
	s := Settings{
		PerplexityAPIKey:  l.GetSetting("perplexity_api_key", "PERPLEXITY_API_KEY", ""),
		FirecrawlAPIKey:   l.GetSetting("firecrawl_api_key", "FIRECRAWL_API_KEY", ""),
		OpenAIAPIKey:      l.GetSetting("openai_api_key", "OPENAI_API_KEY", ""),
		PerplexityBaseURL: strings.TrimRight(l.GetSetting("perplexity_base_url", "PERPLEXITY_BASE_URL", DefaultPerplexityBaseURL), "/"),
		FirecrawlBaseURL:  strings.TrimRight(l.GetSetting("firecrawl_base_url", "FIRECRAWL_BASE_URL", DefaultFirecrawlBaseURL), "/"),

		AIProvider: strings.ToLower(l.GetSetting("ai_provider", "AI_PROVIDER", "perplexity")),
		AIModel:    l.GetSetting("ai_model", "AI_MODEL", ""),

		RateLimitRequests: l.PositiveInt("rate_limit_requests", "RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(l.PositiveInt("rate_limit_window", "RATE_LIMIT_WINDOW", 3600)) * time.Second,

		APITimeout:      time.Duration(l.PositiveInt("api_timeout", "API_TIMEOUT", 30)) * time.Second,
		ScrapingTimeout: time.Duration(l.PositiveInt("scraping_timeout", "SCRAPING_TIMEOUT", 60)) * time.Second,
		APIMaxRetries:   l.PositiveInt("api_max_retries", "API_MAX_RETRIES", 2),

		ScrapeAllowPrivate: l.Bool("scrape_allow_private", "SCRAPE_ALLOW_PRIVATE", false),

		Debug:       l.Bool("debug", "DEBUG", false),
		Environment: l.GetSetting("environment", "ENVIRONMENT", "development"),
		Port:        l.GetSetting("port", "PORT", "8000"),

		MaxTextLength:             l.PositiveInt("max_text_length", "MAX_TEXT_LENGTH", 10000),
		MinConfidenceThreshold:    l.PositiveInt("min_confidence_threshold", "MIN_CONFIDENCE_THRESHOLD", 50),
		MaxSourcesPerVerification: l.PositiveInt("max_sources_per_verification", "MAX_SOURCES_PER_VERIFICATION", 5),
		SystemPromptTemplate:      l.GetSetting("system_prompt_template", "SYSTEM_PROMPT_TEMPLATE", DefaultSystemPrompt),

		MySQLDSN:    l.GetSetting("mysql_dsn", "MYSQL_DSN", ""),
		RedisURL:    l.GetSetting("redis_url", "REDIS_URL", ""),
		CORSOrigins: l.List("cors_origins", "CORS_ORIGINS", []string{"*"}),
		NewsFeeds:   l.List("news_feeds", "NEWS_FEEDS", DefaultNewsFeeds),

		SSLCert: l.GetSetting("ssl_cert", "SSL_CERT", ""),
		SSLKey:  l.GetSetting("ssl_key", "SSL_KEY", ""),
	}
	if s.MinConfidenceThreshold > 100 {
		s.MinConfidenceThreshold = 100
	}
	return s
}

// Defaults returns the settings of an empty environment.
func Defaults() Settings {
	return Load(NewLoader(nil, func(string) string { return "" }))
}

// ProviderKey returns the credential for the configured reasoning provider.
func (s Settings) ProviderKey() string {
	switch s.AIProvider {
	case "openai", "gpt", "gpt4o":
		return s.OpenAIAPIKey
	default:
		return s.PerplexityAPIKey
	}
}

// ReasoningConfigured reports whether the reasoning provider has a credential.
func (s Settings) ReasoningConfigured() bool { return s.ProviderKey() != "" }

// ScrapingConfigured reports whether the hosted scraper has a credential. Without it pages are fetched directly.
func (s Settings) ScrapingConfigured() bool { return s.FirecrawlAPIKey != "" }

func (s Settings) TLSEnabled() bool { return s.SSLCert != "" && s.SSLKey != "" }

func (s Settings) IsProduction() bool { return strings.EqualFold(s.Environment, "production") }
