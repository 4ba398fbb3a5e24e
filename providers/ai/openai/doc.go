// Package openai implements [ai.Provider] on top of the /chat/completions
// endpoint of OpenAI-compatible APIs.
//
// [New] reads OPENAI_API_KEY and OPENAI_API_BASE_URL from the environment and
// defaults to gpt-4o at temperature 0; the With* builder methods override any
// of these values programmatically.
package openai
