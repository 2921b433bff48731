package verification

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/stake-plus/validai/src/types"
)

// Validate checks a request in a fixed order and reports the first failing rule:
// text length, then URL shape, then presence of any input. Text length is counted in code points.
func Validate(req types.VerificationRequest, maxTextLength int) error {
	if req.Text != "" && maxTextLength > 0 {
		if n := utf8.RuneCountInString(req.Text); n > maxTextLength {
			return &ValidationError{
				Code:    CodeTextTooLong,
				Message: fmt.Sprintf("text has %d characters, the maximum is %d", n, maxTextLength),
			}
		}
	}
	if req.URL != "" && !validURL(req.URL) {
		return &ValidationError{
			Code:    CodeMalformedURL,
			Message: "url must be an absolute http or https address",
		}
	}
	if !req.HasText() && !req.HasURL() {
		return &ValidationError{
			Code:    CodeMissingInput,
			Message: "provide a text or a url to verify",
		}
	}
	return nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return u.Hostname() != ""
}
