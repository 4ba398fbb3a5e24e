package graph

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/leofalp/sleuth/core/state"
	"github.com/leofalp/sleuth/providers/checkpoint"
	"github.com/leofalp/sleuth/providers/observability"
)

// Semantic conventions for graph observability attributes.
const (
	// spanGraphRun is the span name for a whole Run or Stream call.
	spanGraphRun = "graph.run"

	// spanGraphStageExecute is the span name for a single stage invocation.
	spanGraphStageExecute = "graph.stage.execute"

	attrGraphName     = "graph.name"
	attrGraphThreadID = "graph.thread_id"
	attrGraphRunID    = "graph.run_id"
	attrGraphResumed  = "graph.resumed"
	attrGraphStage    = "graph.stage"
	attrGraphBranch   = "graph.stage.branch"
	attrGraphStep     = "graph.step"
	attrGraphStatus   = "graph.stage.status"
	attrGraphStages   = "graph.total_stages"
	attrGraphFields   = "graph.update.fields"
	attrGraphSeq      = "graph.checkpoint.seq"

	// metricGraphStageDuration is the histogram of stage invocation durations.
	metricGraphStageDuration = "sleuth.graph.stage.duration"

	// metricGraphStageCount counts stage invocations by status.
	metricGraphStageCount = "sleuth.graph.stage.count"

	// metricGraphRunDuration is the histogram of run durations.
	metricGraphRunDuration = "sleuth.graph.run.duration"

	// metricGraphBranchCount counts mapping branch invocations.
	metricGraphBranchCount = "sleuth.graph.branch.count"

	// metricGraphCheckpointCount counts persisted checkpoints.
	metricGraphCheckpointCount = "sleuth.graph.checkpoint.count"
)

// runObserver reports a single run. A nil provider disables every method.
type runObserver struct {
	// provider is WithObserver's provider, or the one carried by the run
	// context. Nil means observability is disabled (zero overhead).
	provider observability.Provider

	// graphName labels every span and metric.
	graphName string

	// stageCount is the number of registered stages.
	stageCount int

	// rootSpan is the top-level span of the run.
	rootSpan observability.Span
}

func (graph *Graph) newRunObserver(ctx context.Context) *runObserver {
	provider := graph.config.observer
	if provider == nil {
		provider = observability.ObserverFromContext(ctx)
	}
	return &runObserver{
		provider:   provider,
		graphName:  graph.config.name,
		stageCount: len(graph.stages),
	}
}

// runStarted opens the root span and attaches it, and the observer, to ctx
// so that stages and nested graphs report beneath it.
func (observer *runObserver) runStarted(ctx context.Context, current *run, resumed bool) context.Context {
	if observer.provider == nil {
		return ctx
	}

	attrs := []observability.Attribute{
		observability.String(attrGraphName, observer.graphName),
		observability.String(attrGraphThreadID, current.threadID),
		observability.String(attrGraphRunID, current.runID),
		observability.Bool(attrGraphResumed, resumed),
		observability.Int(attrGraphStages, observer.stageCount),
	}

	ctx, observer.rootSpan = observer.provider.StartSpan(ctx, spanGraphRun, attrs...)
	ctx = observability.ContextWithSpan(ctx, observer.rootSpan)
	ctx = observability.ContextWithObserver(ctx, observer.provider)

	observer.provider.Info(ctx, "graph run started", attrs...)
	return ctx
}

// runFinished records the run duration and closes the root span.
func (observer *runObserver) runFinished(ctx context.Context, current *run, runError error, duration time.Duration) {
	if observer.provider == nil {
		return
	}

	status := "completed"
	switch {
	case errors.Is(runError, errConsumerStopped):
		status = "stopped"
	case isCanceled(runError):
		status = "canceled"
	case runError != nil:
		status = "failed"
	}

	observer.provider.Histogram(metricGraphRunDuration).Record(ctx, duration.Seconds(),
		observability.String(attrGraphName, observer.graphName),
		observability.String(observability.AttrStatus, status),
	)

	attrs := []observability.Attribute{
		observability.String(attrGraphName, observer.graphName),
		observability.String(attrGraphThreadID, current.threadID),
		observability.Int(attrGraphStep, current.step),
		observability.String(observability.AttrStatus, status),
		observability.Duration(observability.AttrDuration, duration),
	}

	if status == "failed" || status == "canceled" {
		observer.provider.Error(ctx, "graph run failed", append(attrs, observability.Error(runError))...)
	} else {
		observer.provider.Info(ctx, "graph run finished", attrs...)
	}

	if observer.rootSpan == nil {
		return
	}
	if status == "failed" || status == "canceled" {
		observer.rootSpan.RecordError(runError)
		observer.rootSpan.SetStatus(observability.StatusError, "graph run "+status)
	} else {
		observer.rootSpan.SetStatus(observability.StatusOK, "graph run "+status)
	}
	observer.rootSpan.End()
}

// stageStarted opens a child span for a stage invocation. The returned
// context carries the span.
func (observer *runObserver) stageStarted(ctx context.Context, step int, task checkpoint.Task) context.Context {
	if observer.provider == nil {
		return ctx
	}

	var stageSpan observability.Span
	ctx, stageSpan = observer.provider.StartSpan(ctx, spanGraphStageExecute,
		observability.String(attrGraphName, observer.graphName),
		observability.String(attrGraphStage, task.Stage),
		observability.Int(attrGraphBranch, task.Branch),
		observability.Int(attrGraphStep, step),
	)
	ctx = observability.ContextWithSpan(ctx, stageSpan)

	if task.Branch > 0 {
		observer.provider.Counter(metricGraphBranchCount).Add(ctx, 1,
			observability.String(attrGraphName, observer.graphName),
			observability.String(attrGraphStage, task.Stage),
		)
	}

	observer.provider.Debug(ctx, "stage started",
		observability.String(attrGraphStage, task.Stage),
		observability.Int(attrGraphBranch, task.Branch),
		observability.Int(attrGraphStep, step),
	)
	return ctx
}

// stageFinished records the outcome of a stage invocation and closes its span.
func (observer *runObserver) stageFinished(ctx context.Context, task checkpoint.Task, update state.Update, stageError error, duration time.Duration) {
	if observer.provider == nil {
		return
	}

	status := "completed"
	if stageError != nil {
		status = "failed"
	}

	observer.provider.Histogram(metricGraphStageDuration).Record(ctx, duration.Seconds(),
		observability.String(attrGraphName, observer.graphName),
		observability.String(attrGraphStage, task.Stage),
	)
	observer.provider.Counter(metricGraphStageCount).Add(ctx, 1,
		observability.String(attrGraphName, observer.graphName),
		observability.String(attrGraphStage, task.Stage),
		observability.String(attrGraphStatus, status),
	)

	stageSpan := observability.SpanFromContext(ctx)

	if stageError != nil {
		observer.provider.Error(ctx, "stage failed",
			observability.String(attrGraphStage, task.Stage),
			observability.Int(attrGraphBranch, task.Branch),
			observability.Error(stageError),
			observability.Duration(observability.AttrDuration, duration),
		)
		if stageSpan != nil {
			stageSpan.RecordError(stageError)
			stageSpan.SetStatus(observability.StatusError, "stage failed")
			stageSpan.End()
		}
		return
	}

	observer.provider.Info(ctx, "stage completed",
		observability.String(attrGraphStage, task.Stage),
		observability.Int(attrGraphBranch, task.Branch),
		observability.String(attrGraphFields, observability.TruncateString(strings.Join(update.Keys(), ","), 100)),
		observability.Duration(observability.AttrDuration, duration),
	)
	if stageSpan != nil {
		stageSpan.SetAttributes(
			observability.String(attrGraphStatus, status),
			observability.Duration(observability.AttrDuration, duration),
		)
		stageSpan.SetStatus(observability.StatusOK, "stage completed")
		stageSpan.End()
	}
}

// checkpointWritten counts a persisted checkpoint and logs its sequence.
func (observer *runObserver) checkpointWritten(ctx context.Context, task checkpoint.Task, seq int64) {
	if observer.provider == nil {
		return
	}

	observer.provider.Counter(metricGraphCheckpointCount).Add(ctx, 1,
		observability.String(attrGraphName, observer.graphName),
	)
	observer.provider.Trace(ctx, "checkpoint written",
		observability.String(attrGraphStage, task.Stage),
		observability.Int(attrGraphBranch, task.Branch),
		observability.Int64(attrGraphSeq, seq),
	)
}
