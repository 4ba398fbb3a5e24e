// Package brave implements [search.Provider] on top of the Brave Search web
// endpoint. The API key travels in the X-Subscription-Token header; [New]
// reads it from BRAVE_SEARCH_API_KEY.
//
// Each web result becomes one document whose content is the description
// followed by any extra snippets, with Brave's inline highlighting converted
// to Markdown.
package brave
