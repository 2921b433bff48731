package types

import (
	"strings"
	"time"
)

// VerificationRequest is the user submission. An empty field counts as absent.
type VerificationRequest struct {
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
}

func (r VerificationRequest) HasText() bool { return strings.TrimSpace(r.Text) != "" }

func (r VerificationRequest) HasURL() bool { return r.URL != "" }

// InputType names what the caller submitted, for logs and metadata.
func (r VerificationRequest) InputType() string {
	switch {
	case r.HasText() && r.HasURL():
		return "text+url"
	case r.HasURL():
		return "url"
	default:
		return "text"
	}
}

// ScrapingResult holds the page content extracted from a URL.
type ScrapingResult struct {
	URL       string            `json:"url"`
	Title     string            `json:"title,omitempty"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata"`
	ScrapedAt time.Time         `json:"scraped_at"`
}
