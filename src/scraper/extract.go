package scraper

import (
	"bytes"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/stake-plus/validai/src/types"
)

// contentSelectors cover the article containers of the large Brazilian portals.
var contentSelectors = []string{
	"article",
	`[role="main"]`,
	"main",
	".materia-conteudo",
	".content-text",
	".story-body",
	".texto-noticia",
	".corpo-texto",
	".texto",
	`[data-testid="article-body"]`,
	".RichTextStoryBody",
	".content",
}

// extract pulls the title, description and main text out of an HTML page. Readability runs
// first; when it yields too little text the known content selectors are tried, then the body.
func extract(body []byte, pageURL *url.URL) (*types.ScrapingResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, noscript, iframe, nav, footer, header, aside, form").Remove()

	meta := map[string]string{"extractor": "readability"}
	if d := metaContent(doc, `meta[name="description"]`, `meta[property="og:description"]`); d != "" {
		meta["description"] = d
	}
	if s := metaContent(doc, `meta[property="og:site_name"]`); s != "" {
		meta["site_name"] = s
	}
	if p := metaContent(doc, `meta[property="article:published_time"]`, `meta[name="date"]`); p != "" {
		meta["published_time"] = p
	}
	if lang, ok := doc.Find("html").Attr("lang"); ok && lang != "" {
		meta["language"] = lang
	}
	title := metaContent(doc, `meta[property="og:title"]`)
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	content := ""
	if article, err := readability.FromReader(bytes.NewReader(body), pageURL); err == nil {
		content = strings.TrimSpace(article.TextContent)
		if title == "" {
			title = strings.TrimSpace(article.Title)
		}
		if article.Byline != "" {
			meta["byline"] = strings.TrimSpace(article.Byline)
		}
	}

	if countWords(content) < minWords {
		meta["extractor"] = "selectors"
		content = ""
		for _, sel := range contentSelectors {
			text := strings.TrimSpace(doc.Find(sel).First().Text())
			if countWords(text) >= minWords {
				content = text
				meta["selector"] = sel
				break
			}
		}
	}
	if content == "" {
		meta["extractor"] = "body"
		content = strings.TrimSpace(doc.Find("body").Text())
	}

	return &types.ScrapingResult{
		URL:      pageURL.String(),
		Title:    title,
		Content:  content,
		Metadata: meta,
	}, nil
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func unescape(s string) string { return html.UnescapeString(s) }

func collapseWhitespace(s string) string { return strings.Join(strings.Fields(s), " ") }
