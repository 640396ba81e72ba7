// Package htmlsanitize strips markup from user- and model-supplied text
// before it is stored or returned to browsers.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText removes every tag and returns unescaped text with surrounding
// whitespace trimmed. Used for titles and AI summaries.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
