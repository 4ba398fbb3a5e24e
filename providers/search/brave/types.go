package brave

type webSearchResponse struct {
	Type string      `json:"type"`
	Web  *webResults `json:"web,omitempty"`
}

type webResults struct {
	Type    string      `json:"type"`
	Results []webResult `json:"results"`
}

type webResult struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Description   string   `json:"description"`
	ExtraSnippets []string `json:"extra_snippets,omitempty"`
	Age           string   `json:"age,omitempty"`
	Language      string   `json:"language,omitempty"`
}
