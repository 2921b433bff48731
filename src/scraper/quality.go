package scraper

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	minWords = 6
	// Error pages are short; longer texts are articles that merely mention these phrases.
	errorPageMaxWords = 150
)

var errorPagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)acesso.?negado`),
	regexp.MustCompile(`(?i)access.?denied`),
	regexp.MustCompile(`(?i)p[aá]gina.?n[aã]o.?encontrada`),
	regexp.MustCompile(`(?i)page.?not.?found`),
	regexp.MustCompile(`(?i)erro.?404|error.?404|404.?not.?found`),
	regexp.MustCompile(`(?i)forbidden`),
	regexp.MustCompile(`(?i)manuten[cç][aã]o|under.?maintenance`),
	regexp.MustCompile(`(?i)enable.?javascript|ative.?o.?javascript`),
}

// countWords counts words longer than two characters.
func countWords(text string) int {
	n := 0
	for _, w := range strings.Fields(text) {
		if len([]rune(w)) > 2 {
			n++
		}
	}
	return n
}

// checkQuality rejects pages with too little text and short pages that look like error screens.
func checkQuality(title, content string) error {
	words := countWords(content)
	if words < minWords {
		return fmt.Errorf("%w: %d words", ErrEmptyContent, words)
	}
	if words > errorPageMaxWords {
		return nil
	}
	for _, re := range errorPagePatterns {
		if re.MatchString(title) || re.MatchString(content) {
			return fmt.Errorf("%w: looks like an error page (%s)", ErrBlocked, re.String())
		}
	}
	return nil
}
