package investigation

import (
	"context"
	"fmt"
	"strings"

	"github.com/leofalp/sleuth/core/state"
	"github.com/leofalp/sleuth/patterns/graph"
	"github.com/leofalp/sleuth/providers/ai"
	"github.com/leofalp/sleuth/providers/observability"
	"github.com/leofalp/sleuth/providers/search"
)

// searcher holds the collaborators of the web searcher stages.
type searcher struct {
	completion ai.Provider
	retrieval  search.Provider
	maxResults int
}

// searchWeb retrieves documents for the query and appends them, formatted,
// as one context entry.
func (s *searcher) searchWeb(ctx context.Context, st state.State) (state.Update, error) {
	query, err := state.As[string](st, FieldSearchQuery)
	if err != nil {
		return nil, err
	}

	documents, err := s.retrieval.Search(ctx, query, s.maxResults)
	if err != nil {
		return nil, err
	}

	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Debug(ctx, "documents retrieved",
			observability.String(observability.AttrSearchQuery, observability.TruncateStringDefault(query)),
			observability.Int(observability.AttrSearchResultsCount, len(documents)),
		)
	}
	return state.Update{FieldContext: search.FormatDocuments(documents)}, nil
}

// checkIfCopied asks whether the query appears in the retrieved context and
// appends the answer, named AnswerName, to the conversation.
func (s *searcher) checkIfCopied(ctx context.Context, st state.State) (state.Update, error) {
	query, err := state.As[string](st, FieldSearchQuery)
	if err != nil {
		return nil, err
	}
	messages, err := state.As[[]ai.Message](st, FieldMessages)
	if err != nil {
		return nil, err
	}
	contexts, err := state.As[[]string](st, FieldContext)
	if err != nil {
		return nil, err
	}

	completion, err := s.completion.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: WebSearcherPrompt(query, strings.Join(contexts, search.DocumentSeparator)),
		Messages:     messages,
	})
	if err != nil {
		return nil, err
	}

	answer := ai.Message{Role: ai.RoleAssistant, Content: completion.Content, Name: AnswerName}
	return state.Update{FieldMessages: answer}, nil
}

// saveFindings files the conversation as a single transcript.
func (s *searcher) saveFindings(_ context.Context, st state.State) (state.Update, error) {
	messages, err := state.As[[]ai.Message](st, FieldMessages)
	if err != nil {
		return nil, err
	}
	return state.Update{FieldFindings: ai.BufferString(messages)}, nil
}

// newSearcherGraph compiles Start -> search_web -> check_if_copied ->
// save_findings -> End.
func newSearcherGraph(s *searcher, stageOpts []graph.StageOption, opts ...graph.Option) (*graph.Graph, error) {
	builder := graph.NewBuilder(SearcherSchema, opts...)

	stages := []struct {
		name  string
		stage graph.StageFunc
	}{
		{StageSearchWeb, s.searchWeb},
		{StageCheckIfCopied, s.checkIfCopied},
		{StageSaveFindings, s.saveFindings},
	}
	previous := graph.Start
	for _, entry := range stages {
		if err := builder.RegisterStage(entry.name, entry.stage, stageOpts...); err != nil {
			return nil, err
		}
		if err := builder.AddEdge(previous, entry.name); err != nil {
			return nil, err
		}
		previous = entry.name
	}
	if err := builder.AddEdge(previous, graph.End); err != nil {
		return nil, err
	}

	compiled, err := builder.Compile()
	if err != nil {
		return nil, fmt.Errorf("investigation: compile searcher: %w", err)
	}
	return compiled, nil
}
