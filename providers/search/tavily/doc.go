// Package tavily implements [search.Provider] on top of the Tavily Search API,
// which is tuned for LLM and RAG consumption.
//
// [New] reads TAVILY_API_KEY from the environment. Result content that looks
// like HTML is converted to Markdown before it is returned.
package tavily
