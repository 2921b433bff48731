package verification

import (
	"fmt"
	"strings"

	"github.com/OneOfOne/xxhash"
)

const truncationMarker = "\n\n[Content truncated for analysis]"

// Prompt is the fixed instruction template plus the content under analysis.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt combines the template with the content. sourceURL is mentioned when the
// content came from a page.
func BuildPrompt(template, content, sourceURL string) Prompt {
	var b strings.Builder
	b.WriteString("Analyze this information: ")
	b.WriteString(content)
	if sourceURL != "" {
		b.WriteString("\n\nSource URL: ")
		b.WriteString(sourceURL)
	}
	return Prompt{System: template, User: b.String()}
}

// TruncateContent caps content at limit code points and marks the cut.
func TruncateContent(content string, limit int) (string, bool) {
	if limit <= 0 {
		return content, false
	}
	r := []rune(content)
	if len(r) <= limit {
		return content, false
	}
	return string(r[:limit]) + truncationMarker, true
}

// Fingerprint hashes normalized content so repeated submissions can be matched in history.
func Fingerprint(content string) string {
	h := xxhash.NewS64(0)
	h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(content), " "))))
	return fmt.Sprintf("%016x", h.Sum64())
}
