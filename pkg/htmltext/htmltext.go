// Package htmltext converts between the HTML Mastodon serves for status
// content and the plain text the bot works with.
package htmltext

import (
	"html"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	brPattern    = regexp.MustCompile(`(?i)<br\s*/?>`)
	pClose       = regexp.MustCompile(`(?i)</p>`)
	tagPattern   = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	spacePattern = regexp.MustCompile(`[ \t]{2,}`)
	linePattern  = regexp.MustCompile(`\n{3,}`)
)

// StripTags converts status HTML to plain text. Paragraph and line break
// tags become newlines, every other tag is dropped, and entities are
// unescaped.
func StripTags(s string) string {
	if s == "" {
		return ""
	}

	s = brPattern.ReplaceAllString(s, "\n")
	s = pClose.ReplaceAllString(s, "\n")
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	// Collapse whitespace left behind by removed tags
	s = spacePattern.ReplaceAllString(s, " ")
	s = linePattern.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// FromMarkdown renders model output that may contain markdown down to
// plain text suitable for a status body.
func FromMarkdown(md string) string {
	if md == "" {
		return ""
	}

	rendered := string(blackfriday.Run([]byte(md), blackfriday.WithExtensions(blackfriday.CommonExtensions)))
	return StripTags(rendered)
}
