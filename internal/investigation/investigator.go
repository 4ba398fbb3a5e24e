package investigation

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/leofalp/sleuth/core/state"
	"github.com/leofalp/sleuth/patterns/graph"
	"github.com/leofalp/sleuth/providers/ai"
	"github.com/leofalp/sleuth/providers/checkpoint"
	"github.com/leofalp/sleuth/providers/observability"
	"github.com/leofalp/sleuth/providers/search"
)

// Names of the compiled graphs, used for thread metadata and telemetry.
const (
	LeaderGraphName   = "pi_team_leader"
	SearcherGraphName = "web_searcher"
)

// DefaultMaxResults is the number of documents retrieved per sentence.
const DefaultMaxResults = 3

var (
	// ErrEmptySourceText is returned when there is nothing to investigate.
	ErrEmptySourceText = errors.New("investigation: empty source text")

	// ErrMissingProvider is returned by New when a collaborator is nil.
	ErrMissingProvider = errors.New("investigation: missing provider")
)

type config struct {
	store          checkpoint.Store
	observer       observability.Provider
	maxResults     int
	maxConcurrency int
	runTimeout     time.Duration
	stageTimeout   time.Duration
}

// Option configures an Investigator.
type Option func(*config)

// WithStore persists both graphs in store. Nested searcher runs use threads
// derived from the leader thread.
func WithStore(store checkpoint.Store) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithObserver sets the observability provider of both graphs.
func WithObserver(observer observability.Provider) Option {
	return func(c *config) {
		c.observer = observer
	}
}

// WithMaxResults sets the number of documents retrieved per sentence.
func WithMaxResults(maxResults int) Option {
	return func(c *config) {
		c.maxResults = maxResults
	}
}

// WithMaxConcurrency bounds the number of searchers running at once.
func WithMaxConcurrency(maxConcurrency int) Option {
	return func(c *config) {
		c.maxConcurrency = maxConcurrency
	}
}

// WithRunTimeout bounds a whole investigation.
func WithRunTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.runTimeout = timeout
	}
}

// WithStageTimeout bounds every stage that calls a collaborator.
func WithStageTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.stageTimeout = timeout
	}
}

// Investigator runs plagiarism investigations. It is safe for concurrent
// use on distinct threads.
type Investigator struct {
	leader   *graph.Graph
	searcher *graph.Graph
}

// New compiles the leader and searcher graphs around the given providers.
func New(completion ai.Provider, retrieval search.Provider, opts ...Option) (*Investigator, error) {
	if completion == nil || retrieval == nil {
		return nil, ErrMissingProvider
	}

	cfg := &config{maxResults: DefaultMaxResults}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.maxResults <= 0 {
		cfg.maxResults = DefaultMaxResults
	}

	graphOptions := func(name string) []graph.Option {
		options := []graph.Option{graph.WithName(name), graph.WithMaxConcurrency(cfg.maxConcurrency)}
		if cfg.store != nil {
			options = append(options, graph.WithStore(cfg.store))
		}
		if cfg.observer != nil {
			options = append(options, graph.WithObserver(cfg.observer))
		}
		return options
	}
	var stageOptions []graph.StageOption
	if cfg.stageTimeout > 0 {
		stageOptions = append(stageOptions, graph.WithStageTimeout(cfg.stageTimeout))
	}

	searcherGraph, err := newSearcherGraph(
		&searcher{completion: completion, retrieval: retrieval, maxResults: cfg.maxResults},
		stageOptions,
		graphOptions(SearcherGraphName)...,
	)
	if err != nil {
		return nil, err
	}

	leaderGraph, err := newLeaderGraph(
		&leader{completion: completion},
		searcherGraph,
		stageOptions,
		append(graphOptions(LeaderGraphName), graph.WithExecutionTimeout(cfg.runTimeout))...,
	)
	if err != nil {
		return nil, err
	}

	return &Investigator{leader: leaderGraph, searcher: searcherGraph}, nil
}

// Run investigates sourceText on threadID and returns the report. A thread
// that already holds an investigation starts a new one.
func (investigator *Investigator) Run(ctx context.Context, sourceText, threadID string) (*Report, error) {
	if strings.TrimSpace(sourceText) == "" {
		return nil, ErrEmptySourceText
	}
	final, err := investigator.leader.Run(ctx, map[string]any{FieldSourceText: sourceText}, threadID)
	if err != nil {
		return nil, err
	}
	return reportFromState(threadID, final)
}

// Stream is like Run but yields the engine events as they happen. An empty
// sourceText yields a single error event carrying ErrEmptySourceText.
func (investigator *Investigator) Stream(ctx context.Context, sourceText, threadID string) iter.Seq2[graph.Event, error] {
	if strings.TrimSpace(sourceText) == "" {
		return func(yield func(graph.Event, error) bool) {
			yield(graph.Event{Type: graph.EventError, Error: ErrEmptySourceText.Error()}, ErrEmptySourceText)
		}
	}
	return investigator.leader.Stream(ctx, map[string]any{FieldSourceText: sourceText}, threadID).Iter()
}

// Resume continues the thread from its latest superstep boundary. A thread
// whose investigation already finished returns its report without calling
// any provider.
func (investigator *Investigator) Resume(ctx context.Context, threadID string) (*Report, error) {
	final, err := investigator.leader.Run(ctx, nil, threadID)
	if err != nil {
		return nil, err
	}
	return reportFromState(threadID, final)
}

// State returns the report as recorded by the latest checkpoint of the
// thread, finished or not.
func (investigator *Investigator) State(ctx context.Context, threadID string) (*Report, error) {
	current, err := investigator.leader.GetState(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return reportFromState(threadID, current)
}

// History returns the leader checkpoints of the thread.
func (investigator *Investigator) History(ctx context.Context, threadID string) ([]checkpoint.Checkpoint, error) {
	return investigator.leader.History(ctx, threadID)
}

// Mermaid renders the leader and searcher graphs.
func (investigator *Investigator) Mermaid() string {
	return investigator.leader.Mermaid() + "\n" + investigator.searcher.Mermaid()
}

func reportFromState(threadID string, st state.State) (*Report, error) {
	report := &Report{ThreadID: threadID}
	var err error
	if report.Queries, err = state.As[[]string](st, FieldQueries); err != nil {
		return nil, err
	}
	if report.Findings, err = state.As[[]string](st, FieldFindings); err != nil {
		return nil, err
	}
	if report.Content, err = state.As[string](st, FieldContent); err != nil {
		return nil, err
	}
	if report.Conclusion, err = state.As[string](st, FieldConclusion); err != nil {
		return nil, err
	}
	if report.FinalReport, err = state.As[string](st, FieldFinalReport); err != nil {
		return nil, err
	}
	return report, nil
}
