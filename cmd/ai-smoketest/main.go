package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	aicore "github.com/stake-plus/validai/src/ai/core"
	_ "github.com/stake-plus/validai/src/ai/providers"
	"github.com/stake-plus/validai/src/config"
	"github.com/stake-plus/validai/src/scraper"
	"github.com/stake-plus/validai/src/types"
	"github.com/stake-plus/validai/src/verification"
)

var (
	providersFlag = flag.String("providers", "perplexity", "Comma-separated provider list or 'all'")
	modeFlag      = flag.String("mode", "verify", "respond|verify|both")
	modelFlag     = flag.String("model", "", "Override model name")
	textFlag      = flag.String("text", defaultClaim, "Claim to verify")
	urlFlag       = flag.String("url", "", "Article URL to scrape and verify")
	timeoutFlag   = flag.Duration("timeout", 45*time.Second, "Per-provider timeout")
	maxLenFlag    = flag.Int("max-bytes", 1200, "Maximum bytes of output to print per response (0=unlimited)")
)

const defaultClaim = "O Brasil foi o país que mais ganhou Copas do Mundo de futebol masculino."

func main() {
	log.SetFlags(0)
	flag.Parse()
	config.LoadDotEnv(".env")

	providers := resolveProviders(*providersFlag)
	if len(providers) == 0 {
		log.Fatal("no providers specified")
	}
	mode, err := parseMode(*modeFlag)
	if err != nil {
		log.Fatalf("invalid mode: %v", err)
	}

	base := config.Load(config.NewLoader(nil, nil))
	for _, provider := range providers {
		settings := base
		settings.AIProvider = provider
		if *modelFlag != "" {
			settings.AIModel = *modelFlag
		}
		settings.APITimeout = *timeoutFlag
		if err := runProvider(settings, mode); err != nil {
			log.Printf("[%s] ERROR: %v", provider, err)
		}
	}
}

func runProvider(settings config.Settings, mode runMode) error {
	fmt.Printf("=== %s ===\n", settings.AIProvider)
	if mode == modeRespond || mode == modeBoth {
		if err := executeRespondTest(settings); err != nil {
			fmt.Printf("respond ❌ %v\n", err)
		}
	}
	if mode == modeVerify || mode == modeBoth {
		if err := executeVerifyTest(settings); err != nil {
			fmt.Printf("verify ❌ %v\n", err)
		}
	}
	return nil
}

func executeRespondTest(settings config.Settings) error {
	client, err := aicore.NewClient(aicore.FactoryConfig{
		Provider:     settings.AIProvider,
		SystemPrompt: settings.SystemPromptTemplate,
		Model:        settings.AIModel,
		APIKey:       settings.ProviderKey(),
		Timeout:      settings.APITimeout,
		MaxRetries:   settings.APIMaxRetries,
	})
	if err != nil {
		return fmt.Errorf("client init: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()
	start := time.Now()
	prompt := verification.BuildPrompt(settings.SystemPromptTemplate, *textFlag, "")
	reply, err := client.Respond(ctx, prompt.User, []aicore.Tool{{Type: "web_search"}}, aicore.Options{
		SystemPrompt:    prompt.System,
		EnableWebSearch: true,
	})
	if err != nil {
		return err
	}
	fmt.Printf("respond ✅ (%.1fs, model=%s, %d citations)\n%s\n",
		time.Since(start).Seconds(), reply.Model, len(reply.Citations), truncate(reply.Text, *maxLenFlag))
	return nil
}

func executeVerifyTest(settings config.Settings) error {
	pages := scraper.New(scraper.Config{
		FirecrawlAPIKey:  settings.FirecrawlAPIKey,
		FirecrawlBaseURL: settings.FirecrawlBaseURL,
		Timeout:          settings.ScrapingTimeout,
		MaxRetries:       settings.APIMaxRetries,

		AllowPrivateNetworks: settings.ScrapeAllowPrivate,
	})
	v := verification.NewFromSettings(settings, pages)

	req := types.VerificationRequest{URL: strings.TrimSpace(*urlFlag)}
	if req.URL == "" {
		req.Text = *textFlag
	}
	start := time.Now()
	resp := v.Verify(context.Background(), req)
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	if resp.Status() != types.StatusSuccess {
		return fmt.Errorf("%s: %s", resp.ErrorCode(), resp.ErrorMessage())
	}
	fmt.Printf("verify ✅ (%.1fs)\n%s\n", time.Since(start).Seconds(), truncate(string(out), *maxLenFlag))
	return nil
}

type runMode int

const (
	modeVerify runMode = iota
	modeRespond
	modeBoth
)

func resolveProviders(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.EqualFold(raw, "all") {
		return []string{"perplexity", "openai"}
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	var out []string
	seen := map[string]struct{}{}
	for _, p := range parts {
		key := strings.ToLower(strings.TrimSpace(p))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func parseMode(input string) (runMode, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "verify":
		return modeVerify, nil
	case "respond":
		return modeRespond, nil
	case "both":
		return modeBoth, nil
	default:
		return modeVerify, errors.New("expected verify, respond, or both")
	}
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:limit]) + "...(truncated)"
}
