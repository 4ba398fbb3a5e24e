package parse

import "strings"

// QueryMarker separates sentences in a splitter answer.
const QueryMarker = "split_here"

// Queries turns a splitter answer into search queries. Answers that start
// with a JSON array (optionally fenced) are decoded as []string; everything
// else is split on [QueryMarker]. Entries are trimmed and blank entries are
// dropped, so the result may be empty but is never nil.
func Queries(content string) []string {
	if strings.HasPrefix(StripCodeFence(content), "[") {
		if decoded, err := JSON[[]string](content); err == nil {
			return compact(decoded)
		}
	}
	return compact(strings.Split(content, QueryMarker))
}

func compact(entries []string) []string {
	queries := make([]string, 0, len(entries))
	for _, entry := range entries {
		if query := strings.TrimSpace(entry); query != "" {
			queries = append(queries, query)
		}
	}
	return queries
}
