package investigation

import (
	"context"
	"fmt"
	"strings"

	"github.com/leofalp/sleuth/core/parse"
	"github.com/leofalp/sleuth/core/state"
	"github.com/leofalp/sleuth/patterns/graph"
	"github.com/leofalp/sleuth/providers/ai"
	"github.com/leofalp/sleuth/providers/observability"
)

// findingSeparator joins findings before they are handed to the writers.
const findingSeparator = "\n\n"

type leader struct {
	completion ai.Provider
}

func (l *leader) complete(ctx context.Context, systemPrompt, request string) (string, error) {
	completion, err := l.completion.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []ai.Message{{Role: ai.RoleUser, Content: request}},
	})
	if err != nil {
		return "", err
	}
	return completion.Content, nil
}

// splitToQueries asks for the source text split into sentences.
func (l *leader) splitToQueries(ctx context.Context, st state.State) (state.Update, error) {
	text, err := state.As[string](st, FieldSourceText)
	if err != nil {
		return nil, err
	}

	answer, err := l.complete(ctx, TextSplitterPrompt(text), splitRequest)
	if err != nil {
		return nil, err
	}

	queries := parse.Queries(answer)
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Info(ctx, "source text split", observability.Int("investigation.queries", len(queries)))
	}
	return state.Update{FieldQueries: queries}, nil
}

// mapSearch starts one searcher per query, seeded with the query and an empty
// human turn. No queries means no searcher and no report.
func mapSearch(_ context.Context, st state.State) ([]graph.Send, error) {
	queries, err := state.As[[]string](st, FieldQueries)
	if err != nil {
		return nil, err
	}

	sends := make([]graph.Send, 0, len(queries))
	for _, query := range queries {
		sends = append(sends, graph.Send{
			Stage: StageSearchCheaters,
			Payload: map[string]any{
				FieldSearchQuery: query,
				FieldMessages:    []ai.Message{{Role: ai.RoleUser, Content: ""}},
			},
		})
	}
	return sends, nil
}

func joinedFindings(st state.State) (string, error) {
	findings, err := state.As[[]string](st, FieldFindings)
	if err != nil {
		return "", err
	}
	return strings.Join(findings, findingSeparator), nil
}

func (l *leader) writeReport(ctx context.Context, st state.State) (state.Update, error) {
	findings, err := joinedFindings(st)
	if err != nil {
		return nil, err
	}
	content, err := l.complete(ctx, ReportWriterPrompt(findings), reportRequest)
	if err != nil {
		return nil, err
	}
	return state.Update{FieldContent: content}, nil
}

func (l *leader) writeConclusion(ctx context.Context, st state.State) (state.Update, error) {
	findings, err := joinedFindings(st)
	if err != nil {
		return nil, err
	}
	conclusion, err := l.complete(ctx, ConclusionPrompt(findings), conclusionRequest)
	if err != nil {
		return nil, err
	}
	return state.Update{FieldConclusion: conclusion}, nil
}

func finalizeReport(_ context.Context, st state.State) (state.Update, error) {
	content, err := state.As[string](st, FieldContent)
	if err != nil {
		return nil, err
	}
	conclusion, err := state.As[string](st, FieldConclusion)
	if err != nil {
		return nil, err
	}
	return state.Update{FieldFinalReport: FinalizeReport(content, conclusion)}, nil
}

func newLeaderGraph(l *leader, searcher *graph.Graph, stageOpts []graph.StageOption, opts ...graph.Option) (*graph.Graph, error) {
	builder := graph.NewBuilder(LeaderSchema, opts...)

	// Registration and edge errors are collected by the builder and reported
	// again by Compile.
	_ = builder.RegisterStage(StageSplitToQueries, graph.StageFunc(l.splitToQueries), stageOpts...)
	_ = builder.RegisterStage(StageSearchCheaters, searcher.AsStage())
	_ = builder.RegisterStage(StageWriteReport, graph.StageFunc(l.writeReport), stageOpts...)
	_ = builder.RegisterStage(StageWriteConclusion, graph.StageFunc(l.writeConclusion), stageOpts...)
	_ = builder.RegisterStage(StageFinalizeReport, graph.StageFunc(finalizeReport))

	_ = builder.AddEdge(graph.Start, StageSplitToQueries)
	_ = builder.AddConditionalEdge(StageSplitToQueries, mapSearch, StageSearchCheaters)
	_ = builder.AddEdge(StageSearchCheaters, StageWriteReport)
	_ = builder.AddEdge(StageSearchCheaters, StageWriteConclusion)
	_ = builder.AddFanIn([]string{StageWriteConclusion, StageWriteReport}, StageFinalizeReport)
	_ = builder.AddEdge(StageFinalizeReport, graph.End)

	compiled, err := builder.Compile()
	if err != nil {
		return nil, fmt.Errorf("investigation: compile leader: %w", err)
	}
	return compiled, nil
}
