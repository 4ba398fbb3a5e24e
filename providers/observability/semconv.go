package observability

// Semantic conventions for observability attributes.
// These constants define standard attribute names to ensure consistency
// across different components of the system.

// --- LLM Provider Attributes ---

const (
	// AttrLLMProvider is the name of the completion provider (e.g., "openai")
	AttrLLMProvider = "llm.provider"

	// AttrLLMModel is the model identifier (e.g., "gpt-4o")
	AttrLLMModel = "llm.model"

	// AttrLLMEndpoint is the API endpoint URL
	AttrLLMEndpoint = "llm.endpoint"

	// AttrLLMResponseID is the unique response identifier from the provider
	AttrLLMResponseID = "llm.response.id"

	// AttrLLMFinishReason is the reason the generation finished
	AttrLLMFinishReason = "llm.finish_reason"

	// AttrLLMTemperature is the sampling temperature used
	AttrLLMTemperature = "llm.temperature"

	// AttrLLMMessagesCount is the number of messages sent, system prompt included
	AttrLLMMessagesCount = "llm.messages_count"

	// AttrLLMTokensPrompt is the number of prompt tokens
	AttrLLMTokensPrompt = "llm.tokens.prompt" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensCompletion is the number of completion tokens
	AttrLLMTokensCompletion = "llm.tokens.completion" // #nosec G101 -- Not a credential, token refers to LLM tokens
)

// --- Retrieval Attributes ---

const (
	// AttrSearchProvider is the name of the retrieval backend (e.g., "tavily")
	AttrSearchProvider = "search.provider"

	// AttrSearchQuery is the query sent to the retrieval backend
	AttrSearchQuery = "search.query"

	// AttrSearchMaxResults is the requested number of documents
	AttrSearchMaxResults = "search.max_results"

	// AttrSearchResultsCount is the number of documents returned
	AttrSearchResultsCount = "search.results_count"
)

// --- Checkpoint Attributes ---

const (
	// AttrCheckpointThreadID is the thread a checkpoint belongs to
	AttrCheckpointThreadID = "checkpoint.thread_id"

	// AttrCheckpointSeq is the sequence number assigned to a checkpoint
	AttrCheckpointSeq = "checkpoint.seq"

	// AttrCheckpointStage is the stage that produced a checkpoint
	AttrCheckpointStage = "checkpoint.stage"

	// AttrCheckpointBackend is the store implementation (inmemory, sqlite, postgres)
	AttrCheckpointBackend = "checkpoint.backend"
)

// --- HTTP Attributes ---

const (
	// AttrHTTPMethod is the HTTP method (GET, POST, etc.)
	AttrHTTPMethod = "http.method"

	// AttrHTTPStatusCode is the HTTP response status code
	AttrHTTPStatusCode = "http.status_code"

	// AttrHTTPURL is the full request URL
	AttrHTTPURL = "http.url"

	// AttrHTTPRequestBodySize is the request body size in bytes
	AttrHTTPRequestBodySize = "http.request.body.size"

	// AttrHTTPResponseBodySize is the response body size in bytes
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// --- General Attributes ---

const (
	// AttrError is the error message
	AttrError = "error"

	// AttrDuration is the operation duration
	AttrDuration = "duration"

	// AttrStatus is the operation status
	AttrStatus = "status"

	// AttrStatusDescription is the status description
	AttrStatusDescription = "status_description"
)

// --- Span Names ---

const (
	// SpanLLMRequest is the span name for completion requests
	SpanLLMRequest = "llm.request"

	// SpanSearchRequest is the span name for retrieval requests
	SpanSearchRequest = "search.request"
)

// --- Event Names ---

const (
	// EventCheckpointPut marks when a checkpoint is persisted
	EventCheckpointPut = "checkpoint.put"

	// EventSearchResults marks when documents are received from a retrieval backend
	EventSearchResults = "search.results"
)

// --- Metric Names ---

const (
	// MetricLLMRequestCount is the counter for completion requests
	MetricLLMRequestCount = "sleuth.llm.request.count"

	// MetricLLMRequestDuration is the histogram for completion request duration
	MetricLLMRequestDuration = "sleuth.llm.request.duration"

	// MetricSearchRequestCount is the counter for retrieval requests
	MetricSearchRequestCount = "sleuth.search.request.count"

	// MetricSearchRequestDuration is the histogram for retrieval request duration
	MetricSearchRequestDuration = "sleuth.search.request.duration"
)
