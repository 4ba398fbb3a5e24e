package investigation

import (
	"github.com/leofalp/sleuth/core/state"
	"github.com/leofalp/sleuth/providers/ai"
)

// Team leader fields.
const (
	FieldSourceText  = "source_text"
	FieldQueries     = "queries"
	FieldFindings    = "findings"
	FieldContent     = "content"
	FieldConclusion  = "conclusion"
	FieldFinalReport = "final_report"
)

// Searcher fields. Findings are shared with the leader.
const (
	FieldMessages    = "messages"
	FieldContext     = "context"
	FieldSearchQuery = "search_query"
)

// Stage names.
const (
	StageSplitToQueries  = "split_to_queries"
	StageSearchCheaters  = "search_cheaters"
	StageWriteReport     = "write_report"
	StageWriteConclusion = "write_conclusion"
	StageFinalizeReport  = "finalize_report"

	StageSearchWeb     = "search_web"
	StageCheckIfCopied = "check_if_copied"
	StageSaveFindings  = "save_findings"
)

// LeaderSchema is the state of the team leader graph.
var LeaderSchema = state.MustSchema(
	state.Value[string](FieldSourceText).Describe("Text under investigation."),
	state.Value[[]string](FieldQueries).Describe("Sentences searched for, one searcher each."),
	state.List[string](FieldFindings).Describe("Transcript filed by each searcher."),
	state.Value[string](FieldContent).Describe("Report body written over the findings."),
	state.Value[string](FieldConclusion).Describe("Verdict written over the findings."),
	state.Value[string](FieldFinalReport).Describe("Report body, conclusion and sources."),
)

// SearcherSchema is the state of one web searcher.
var SearcherSchema = state.MustSchema(
	state.List[ai.Message](FieldMessages),
	state.List[string](FieldContext),
	state.List[string](FieldFindings),
	state.Value[string](FieldSearchQuery),
)
