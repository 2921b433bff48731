// Package news collects the latest headlines from Brazilian RSS/Atom feeds for the trending panel.
package news

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/stake-plus/validai/src/webclient"
)

const maxDescriptionRunes = 280

type Category string

const (
	CategoryFootball   Category = "futebol"
	CategoryPolitics   Category = "politica"
	CategoryTechnology Category = "tecnologia"
	CategoryGeneral    Category = "geral"
)

// Checked in order; the first match wins.
var categoryKeywords = []struct {
	category Category
	words    []string
}{
	{CategoryFootball, []string{"futebol", "brasileirão", "brasileirao", "libertadores", "copa do mundo", "flamengo", "corinthians", "palmeiras", "são paulo fc", "vasco", "seleção brasileira", " gol "}},
	{CategoryPolitics, []string{"política", "politica", "congresso", "senado", "câmara", "camara", "presidente", "ministro", " stf ", "eleição", "eleições", "governo", "deputado", "lula", "bolsonaro"}},
	{CategoryTechnology, []string{"tecnologia", "inteligência artificial", "inteligencia artificial", " ia ", "startup", "celular", "smartphone", "internet", "software", "aplicativo", "google", "apple", "openai"}},
}

type Source struct {
	Name string `json:"name"`
}

type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      Source    `json:"source"`
	Category    Category  `json:"category"`
}

// Service reads the configured feeds on demand.
type Service struct {
	feeds     []string
	timeout   time.Duration
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

func New(feeds []string, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		feeds:     feeds,
		timeout:   timeout,
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
	}
}

// Latest returns up to limit items across all feeds, newest first. Failing feeds are skipped;
// an error is returned only when every feed failed.
func (s *Service) Latest(ctx context.Context, limit int) ([]Item, error) {
	if len(s.feeds) == 0 {
		return []Item{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		items  []Item
		failed int
		errs   []error
	)
	for _, feedURL := range s.feeds {
		wg.Add(1)
		go func(feedURL string) {
			defer wg.Done()
			got, err := s.fetch(ctx, feedURL)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("news: %s: %v", feedURL, err)
				failed++
				errs = append(errs, err)
				return
			}
			items = append(items, got...)
		}(feedURL)
	}
	wg.Wait()

	if failed == len(s.feeds) {
		return nil, fmt.Errorf("news: all feeds failed: %w", errors.Join(errs...))
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].PublishedAt.After(items[j].PublishedAt) })
	seen := make(map[string]bool, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if seen[it.URL] {
			continue
		}
		seen[it.URL] = true
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Service) fetch(ctx context.Context, feedURL string) ([]Item, error) {
	parser := gofeed.NewParser()
	parser.UserAgent = webclient.BrowserUserAgent
	parser.Client = webclient.NewDefault(s.timeout)
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		if u, err := url.Parse(feedURL); err == nil {
			source = u.Hostname()
		}
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry.Link == "" || strings.TrimSpace(entry.Title) == "" {
			continue
		}
		published := s.now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}
		desc := entry.Description
		if desc == "" {
			desc = entry.Content
		}
		title := s.clean(entry.Title)
		desc = truncate(s.clean(desc), maxDescriptionRunes)
		items = append(items, Item{
			ID:          fmt.Sprintf("%016x", xxhash.ChecksumString64(entry.Link)),
			Title:       title,
			Description: desc,
			URL:         entry.Link,
			PublishedAt: published,
			Source:      Source{Name: source},
			Category:    Categorize(title + " " + desc),
		})
	}
	return items, nil
}

func (s *Service) clean(text string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s.sanitizer.Sanitize(text))), " ")
}

// Categorize picks a category from keywords in the text.
func Categorize(text string) Category {
	t := " " + strings.ToLower(text) + " "
	for _, c := range categoryKeywords {
		for _, w := range c.words {
			if strings.Contains(t, w) {
				return c.category
			}
		}
	}
	return CategoryGeneral
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit])) + "…"
}
