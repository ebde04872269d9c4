// Package sanitize strips markup from free text before it is fanned out to
// realtime clients.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
	entities     = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", "\"", "&#39;", "'")
)

// StripHTML removes tags, decodes common entities and strips again so
// encoded tags do not survive.
func StripHTML(s string) string {
	out := tagPattern.ReplaceAllString(s, "")
	out = entities.Replace(out)
	out = tagPattern.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// Line sanitizes single-line text such as sender names.
func Line(s string) string {
	return spacePattern.ReplaceAllString(StripHTML(s), " ")
}

// Text sanitizes a chat message body. Line breaks are kept.
func Text(s string) string {
	return StripHTML(s)
}
