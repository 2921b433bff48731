// Package scraper turns a URL into readable text, through Firecrawl when a key is configured
// and through a direct fetch with local extraction otherwise.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/stake-plus/validai/src/types"
	"github.com/stake-plus/validai/src/webclient"
)

const maxPageBytes = 5 << 20

var (
	// ErrBlocked means the site refused the request or served an error page.
	ErrBlocked = errors.New("scraper: page blocked or unavailable")
	// ErrEmptyContent means the page had too little readable text.
	ErrEmptyContent = errors.New("scraper: page has no readable content")
)

type Config struct {
	FirecrawlAPIKey  string
	FirecrawlBaseURL string
	Timeout          time.Duration
	MaxRetries       int

	// AllowPrivateNetworks lets direct fetches reach loopback and private addresses.
	AllowPrivateNetworks bool
}

// Client fetches pages. It is safe for concurrent use.
type Client struct {
	firecrawlKey  string
	firecrawlBase string
	retries       int
	httpClient    *http.Client
	pageClient    *http.Client
	sanitizer     *bluemonday.Policy
	now           func() time.Time
}

func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.FirecrawlBaseURL, "/")
	if base == "" {
		base = "https://api.firecrawl.dev"
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	pages := webclient.NewPublicOnly(cfg.Timeout)
	if cfg.AllowPrivateNetworks {
		pages = webclient.NewDefault(cfg.Timeout)
	}
	return &Client{
		firecrawlKey:  cfg.FirecrawlAPIKey,
		firecrawlBase: base,
		retries:       retries,
		httpClient:    webclient.NewDefault(cfg.Timeout),
		pageClient:    pages,
		sanitizer:     bluemonday.StrictPolicy(),
		now:           time.Now,
	}
}

// UsesFirecrawl reports whether pages go through the hosted scraper.
func (c *Client) UsesFirecrawl() bool { return c.firecrawlKey != "" }

// Fetch returns the readable content of pageURL. The deadline comes from ctx.
func (c *Client) Fetch(ctx context.Context, pageURL string) (*types.ScrapingResult, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("scraper: invalid url %q", pageURL)
	}

	var page *types.ScrapingResult
	if c.UsesFirecrawl() {
		page, err = c.fetchFirecrawl(ctx, pageURL)
	} else {
		page, err = c.fetchDirect(ctx, u)
	}
	if err != nil {
		return nil, err
	}

	page.Content = c.clean(page.Content)
	page.Title = c.clean(page.Title)
	if err := checkQuality(page.Title, page.Content); err != nil {
		return nil, err
	}
	page.ScrapedAt = c.now().UTC()
	log.Printf("scraper: %s title=%q words=%d via=%s", pageURL, page.Title, len(strings.Fields(page.Content)), page.Metadata["extractor"])
	return page, nil
}

func (c *Client) fetchDirect(ctx context.Context, u *url.URL) (*types.ScrapingResult, error) {
	status, body, err := webclient.DoWithRetry(ctx, c.retries+1, time.Second, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return 0, nil, err
		}
		webclient.SetBrowserHeaders(req)
		resp, err := c.pageClient.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			return resp.StatusCode, nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, b, fmt.Errorf("status %d", resp.StatusCode)
		}
		return resp.StatusCode, b, nil
	})
	if errors.Is(err, webclient.ErrPrivateAddress) {
		return nil, fmt.Errorf("%w: %w", ErrBlocked, err)
	}
	if err != nil {
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests, http.StatusNotFound, http.StatusGone:
			return nil, fmt.Errorf("%w: %v", ErrBlocked, err)
		}
		return nil, fmt.Errorf("scraper: fetch %s: %w", u.Host, err)
	}
	return extract(body, u)
}

// clean strips markup and collapses whitespace.
func (c *Client) clean(s string) string {
	if s == "" {
		return ""
	}
	return collapseWhitespace(unescape(c.sanitizer.Sanitize(s)))
}
