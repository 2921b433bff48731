package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/stake-plus/validai/src/types"
	"github.com/stake-plus/validai/src/webclient"
)

type firecrawlRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int      `json:"waitFor,omitempty"`
	Timeout         int      `json:"timeout,omitempty"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
		Content  string `json:"content"`
		Metadata struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Language    string `json:"language"`
			SourceURL   string `json:"sourceURL"`
			StatusCode  int    `json:"statusCode"`
		} `json:"metadata"`
	} `json:"data"`
}

func (c *Client) fetchFirecrawl(ctx context.Context, pageURL string) (*types.ScrapingResult, error) {
	payload := firecrawlRequest{
		URL:             pageURL,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
		WaitFor:         4000,
	}
	if deadline, ok := ctx.Deadline(); ok {
		if ms := int(time.Until(deadline).Milliseconds()); ms > 0 {
			payload.Timeout = ms
		}
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	status, body, err := webclient.DoWithRetry(ctx, c.retries+1, time.Second, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.firecrawlBase+"/v1/scrape", bytes.NewReader(bodyBytes))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.firecrawlKey)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			return resp.StatusCode, nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, b, fmt.Errorf("status %d: %s", resp.StatusCode, webclient.Truncate(b, 256))
		}
		return resp.StatusCode, b, nil
	})
	if err != nil {
		if status == http.StatusForbidden {
			return nil, fmt.Errorf("%w: firecrawl: %v", ErrBlocked, err)
		}
		return nil, fmt.Errorf("scraper: firecrawl: %w", err)
	}

	var out firecrawlResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("scraper: firecrawl: decode: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("scraper: firecrawl: %s", out.Error)
	}
	if sc := out.Data.Metadata.StatusCode; sc >= 400 {
		return nil, fmt.Errorf("%w: site answered %d", ErrBlocked, sc)
	}

	content := out.Data.Markdown
	if content == "" {
		content = out.Data.Content
	}
	meta := map[string]string{"extractor": "firecrawl"}
	if out.Data.Metadata.Description != "" {
		meta["description"] = out.Data.Metadata.Description
	}
	if out.Data.Metadata.Language != "" {
		meta["language"] = out.Data.Metadata.Language
	}
	if out.Data.Metadata.StatusCode != 0 {
		meta["status_code"] = strconv.Itoa(out.Data.Metadata.StatusCode)
	}
	return &types.ScrapingResult{
		URL:      pageURL,
		Title:    out.Data.Metadata.Title,
		Content:  content,
		Metadata: meta,
	}, nil
}
