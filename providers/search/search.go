package search

import (
	"context"
	"fmt"
	"strings"
)

// Document is a single retrieved page.
type Document struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Provider retrieves documents. Implementations must be safe for concurrent use.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]Document, error)
}

// SearchFunc adapts an ordinary function to the Provider interface.
type SearchFunc func(ctx context.Context, query string, maxResults int) ([]Document, error)

// Search calls fn.
func (fn SearchFunc) Search(ctx context.Context, query string, maxResults int) ([]Document, error) {
	return fn(ctx, query, maxResults)
}

// RetrievalServiceError reports a failure of the retrieval backend.
type RetrievalServiceError struct {
	Provider   string
	Query      string
	StatusCode int
	Err        error
}

func (e *RetrievalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: search %q failed (status %d): %v", e.Provider, e.Query, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: search %q failed: %v", e.Provider, e.Query, e.Err)
}

func (e *RetrievalServiceError) Unwrap() error {
	return e.Err
}

// DocumentSeparator joins formatted documents.
const DocumentSeparator = "\n\n---\n\n"

// FormatDocuments renders each document as
//
//	<Document href="URL"/>
//	CONTENT
//	</Document>
//
// joined by [DocumentSeparator].
func FormatDocuments(documents []Document) string {
	formatted := make([]string, 0, len(documents))
	for _, document := range documents {
		formatted = append(formatted, fmt.Sprintf("<Document href=\"%s\"/>\n%s\n</Document>", document.URL, document.Content))
	}
	return strings.Join(formatted, DocumentSeparator)
}
