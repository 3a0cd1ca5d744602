package gmat

import (
	"html"
	"regexp"
	"strings"
)

var (
	reBreak       = regexp.MustCompile(`(?i)<\s*br\s*/?\s*>|</\s*(p|div|tr|li|h[1-6])\s*>`)
	reCell        = regexp.MustCompile(`(?i)</\s*t[dh]\s*>`)
	reScript      = regexp.MustCompile(`(?is)<\s*(script|style)[^>]*>.*?</\s*(script|style)\s*>`)
	reTag         = regexp.MustCompile(`(?s)<[^>]+>`)
	reMathDelims  = regexp.MustCompile(`\\[()\[\]]`)
	reSpaces      = regexp.MustCompile(`\s+`)
	reCellPadding = regexp.MustCompile(`\s*\|\s*`)
)

// htmlToText flattens a question body to one line for logs.
func htmlToText(content string) string {
	text := reScript.ReplaceAllString(content, "")
	text = reCell.ReplaceAllString(text, " | ")
	text = reBreak.ReplaceAllString(text, " ")
	text = reTag.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = reMathDelims.ReplaceAllString(text, "")
	text = reSpaces.ReplaceAllString(text, " ")
	text = reCellPadding.ReplaceAllString(text, " | ")
	return strings.Trim(strings.TrimSpace(text), "| ")
}
