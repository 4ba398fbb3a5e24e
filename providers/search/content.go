package search

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var htmlMarkers = []string{"<html", "<body", "<div", "<p>", "<p ", "<br", "<span", "<a href", "<table", "<ul", "<h1", "<h2", "<h3", "<strong", "<b>", "<em"}

// CleanContent converts HTML fragments to Markdown. Plain text, and HTML the
// converter rejects, is returned trimmed but otherwise untouched.
func CleanContent(content string) string {
	content = strings.TrimSpace(content)
	if !looksLikeHTML(content) {
		return content
	}
	markdown, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(markdown)
}

func looksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range htmlMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
