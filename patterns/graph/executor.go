package graph

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leofalp/sleuth/core/state"
	"github.com/leofalp/sleuth/providers/checkpoint"
)

// run holds the mutable progress of a single Run or Stream call.
type run struct {
	threadID string
	runID    string

	// step is the number of the last committed superstep.
	step int

	// current is the parent state at the last superstep boundary.
	current state.State

	// next is the frontier of the following superstep, in spawn order.
	next []checkpoint.Task

	// joins maps a fan-in key to the predecessors that already completed.
	joins map[string][]string

	observer *runObserver
}

// taskResult pairs a task index with the outcome of its invocation.
type taskResult struct {
	index    int
	update   state.Update
	duration time.Duration
	err      error
}

// execute drives a run from its first (or resumed) superstep to the end,
// yielding events as it goes. It returns errConsumerStopped when yield
// reported that the consumer stopped.
func (graph *Graph) execute(ctx context.Context, input map[string]any, threadID string, yield func(Event, error) bool) error {
	if threadID == "" {
		return ErrEmptyThreadID
	}

	if graph.config.executionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, graph.config.executionTimeout)
		defer cancel()
	}

	runStart := time.Now()
	observer := graph.newRunObserver(ctx)

	current, err := graph.prepare(ctx, input, threadID, observer)
	if err != nil {
		return err
	}

	ctx = observer.runStarted(ctx, current, input == nil)
	err = graph.loop(ctx, current, yield)
	observer.runFinished(ctx, current, err, time.Since(runStart))
	return err
}

// prepare seeds a fresh run from input, or restores the latest boundary of
// the thread when input is nil.
func (graph *Graph) prepare(ctx context.Context, input map[string]any, threadID string, observer *runObserver) (*run, error) {
	if input == nil {
		boundary, err := checkpoint.LatestBoundary(ctx, graph.config.store, threadID)
		if err != nil {
			return nil, fmt.Errorf("graph: load checkpoint of thread %q: %w", threadID, err)
		}
		if boundary == nil {
			return nil, fmt.Errorf("%w: thread %q", ErrNoCheckpoint, threadID)
		}

		restored, err := state.FromValues(graph.schema, boundary.Values)
		if err != nil {
			return nil, fmt.Errorf("graph: restore checkpoint %d of thread %q: %w", boundary.Seq, threadID, err)
		}

		joins := make(map[string][]string, len(boundary.Joins))
		for key, completed := range boundary.Joins {
			joins[key] = slices.Clone(completed)
		}

		return &run{
			threadID: threadID,
			runID:    boundary.RunID,
			step:     boundary.Step,
			current:  restored,
			next:     slices.Clone(boundary.Next),
			joins:    joins,
			observer: observer,
		}, nil
	}

	seeded, err := state.New(graph.schema).Apply(state.Update(input))
	if err != nil {
		return nil, fmt.Errorf("graph: invalid input: %w", err)
	}

	fresh := &run{
		threadID: threadID,
		runID:    uuid.NewString(),
		current:  seeded,
		joins:    make(map[string][]string),
		observer: observer,
	}
	if graph.entry != End {
		fresh.next = []checkpoint.Task{{Stage: graph.entry}}
	}

	snapshot := checkpoint.Snapshot{
		RunID:  fresh.runID,
		Step:   0,
		Stage:  Start,
		Values: seeded.Values(),
		Next:   fresh.next,
		Done:   len(fresh.next) == 0,
	}
	if _, err := graph.config.store.Put(ctx, threadID, snapshot); err != nil {
		return nil, fmt.Errorf("graph: write input checkpoint: %w", err)
	}
	return fresh, nil
}

// loop runs supersteps until the frontier is empty.
func (graph *Graph) loop(ctx context.Context, current *run, yield func(Event, error) bool) error {
	for len(current.next) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		step := current.step + 1
		tasks := current.next
		names := make([]string, len(tasks))
		for index, task := range tasks {
			names[index] = task.Stage
		}
		if !yield(Event{Type: EventStepStart, Step: step, Stages: names}, nil) {
			return errConsumerStopped
		}

		updates, err := graph.executeStep(ctx, current, step, tasks, yield)
		if err != nil {
			return err
		}

		seqs, err := graph.commitStep(ctx, current, step, tasks, updates)
		if err != nil {
			return err
		}
		for index, task := range tasks {
			event := Event{Type: EventCheckpoint, Step: step, Stage: task.Stage, Branch: task.Branch, Seq: seqs[index]}
			if !yield(event, nil) {
				return errConsumerStopped
			}
		}
	}

	final := current.current
	if !yield(Event{Type: EventDone, Step: current.step, State: &final}, nil) {
		return errConsumerStopped
	}
	return nil
}

// executeStep runs every task of the superstep concurrently and returns
// their updates in spawn order. The first failure cancels the siblings and
// is the only error reported.
func (graph *Graph) executeStep(ctx context.Context, current *run, step int, tasks []checkpoint.Task, yield func(Event, error) bool) ([]state.Update, error) {
	stepContext, cancelStep := context.WithCancel(ctx)
	defer cancelStep()

	var semaphore chan struct{}
	if graph.config.maxConcurrency > 0 {
		semaphore = make(chan struct{}, graph.config.maxConcurrency)
	}

	results := make(chan taskResult, len(tasks))
	var waitGroup sync.WaitGroup

	for index, task := range tasks {
		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			if semaphore != nil {
				select {
				case semaphore <- struct{}{}:
					defer func() { <-semaphore }()
				case <-stepContext.Done():
					results <- taskResult{index: index, err: stepContext.Err()}
					return
				}
			}

			update, duration, err := graph.runTask(stepContext, current, step, task)
			results <- taskResult{index: index, update: update, duration: duration, err: err}
		}()
	}

	go func() {
		waitGroup.Wait()
		close(results)
	}()

	updates := make([]state.Update, len(tasks))
	var firstError error
	consumerStopped := false

	// Keep draining after a failure so that no goroutine outlives the step.
	for result := range results {
		if firstError != nil || consumerStopped {
			continue
		}

		task := tasks[result.index]
		if result.err != nil {
			firstError = &StageExecutionError{Stage: task.Stage, Branch: task.Branch, Err: result.err}
			cancelStep()
			continue
		}

		updates[result.index] = result.update
		event := Event{
			Type:     EventStageComplete,
			Step:     step,
			Stage:    task.Stage,
			Branch:   task.Branch,
			Update:   result.update,
			Duration: result.duration,
		}
		if !yield(event, nil) {
			consumerStopped = true
			cancelStep()
		}
	}

	if firstError != nil {
		return nil, firstError
	}
	if consumerStopped {
		return nil, errConsumerStopped
	}
	return updates, nil
}

// runTask invokes a single stage with its input view of the state.
func (graph *Graph) runTask(ctx context.Context, current *run, step int, task checkpoint.Task) (state.Update, time.Duration, error) {
	node := graph.stages[task.Stage]

	input, err := graph.taskInput(current.current, node, task)
	if err != nil {
		return nil, 0, err
	}

	stageContext := contextWithRunInfo(ctx, RunInfo{
		ThreadID: current.threadID,
		RunID:    current.runID,
		Stage:    task.Stage,
		Branch:   task.Branch,
		Step:     step,
	})
	if node.timeout > 0 {
		var cancel context.CancelFunc
		stageContext, cancel = context.WithTimeout(stageContext, node.timeout)
		defer cancel()
	}

	stageContext = current.observer.stageStarted(stageContext, step, task)
	stageStart := time.Now()
	update, err := invoke(stageContext, node.stage, input)
	duration := time.Since(stageStart)
	current.observer.stageFinished(stageContext, task, update, err, duration)

	if err != nil {
		return nil, duration, err
	}
	if node.inputSchema != graph.schema {
		update = graph.schema.Filter(update)
	}
	return update, duration, nil
}

// taskInput builds the state a task reads. Regular tasks read the parent
// state, projected when the stage has its own schema. Branch tasks read a
// fresh state seeded from their payload.
func (graph *Graph) taskInput(parent state.State, node *stageNode, task checkpoint.Task) (state.State, error) {
	if task.Branch > 0 {
		seeded, err := state.New(node.inputSchema).Apply(state.Update(task.Payload))
		if err != nil {
			return state.State{}, fmt.Errorf("seed branch state: %w", err)
		}
		return seeded, nil
	}
	if node.inputSchema != graph.schema {
		return parent.Project(node.inputSchema), nil
	}
	return parent, nil
}

func invoke(ctx context.Context, stage Stage, input state.State) (update state.Update, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v", ErrStagePanic, recovered)
		}
	}()
	return stage.Run(ctx, input)
}

func route(ctx context.Context, router Router, view state.State) (sends []Send, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v", ErrRouterPanic, recovered)
		}
	}()
	return router(ctx, view)
}

// commitStep merges the updates in spawn order, evaluates the outgoing
// edges and persists one checkpoint per task. The last checkpoint of the
// step carries the next frontier and is the resume point. It returns the
// sequence numbers in task order.
func (graph *Graph) commitStep(ctx context.Context, current *run, step int, tasks []checkpoint.Task, updates []state.Update) ([]int64, error) {
	states := make([]state.State, len(tasks))
	merged := current.current
	for index, task := range tasks {
		next, err := merged.Apply(updates[index])
		if err != nil {
			return nil, &StageExecutionError{Stage: task.Stage, Branch: task.Branch, Err: fmt.Errorf("merge update: %w", err)}
		}
		merged = next
		states[index] = merged
	}

	joins := make(map[string][]string, len(current.joins))
	for key, completed := range current.joins {
		joins[key] = slices.Clone(completed)
	}

	frontier, err := graph.nextFrontier(ctx, merged, tasks, updates, joins)
	if err != nil {
		return nil, err
	}

	seqs := make([]int64, len(tasks))
	for index, task := range tasks {
		snapshot := checkpoint.Snapshot{
			RunID:  current.runID,
			Step:   step,
			Stage:  task.Stage,
			Branch: task.Branch,
			Values: states[index].Values(),
		}
		if index == len(tasks)-1 {
			snapshot.Next = frontier
			snapshot.Joins = joins
			snapshot.Done = len(frontier) == 0
		}

		seq, err := graph.config.store.Put(ctx, current.threadID, snapshot)
		if err != nil {
			return nil, fmt.Errorf("graph: write checkpoint for stage %q: %w", task.Stage, err)
		}
		seqs[index] = seq
		current.observer.checkpointWritten(ctx, task, seq)
	}

	current.step = step
	current.current = merged
	current.next = frontier
	current.joins = joins
	return seqs, nil
}

// nextFrontier evaluates the outgoing edges of every task in spawn order.
// Plain successors triggered more than once run once; every payload send
// becomes its own branch, numbered from 1 within the step. joins is updated
// in place.
func (graph *Graph) nextFrontier(ctx context.Context, merged state.State, tasks []checkpoint.Task, updates []state.Update, joins map[string][]string) ([]checkpoint.Task, error) {
	frontier := make([]checkpoint.Task, 0)
	scheduled := make(map[string]bool)
	branch := 0

	schedule := func(stage string) {
		if stage == End || scheduled[stage] {
			return
		}
		scheduled[stage] = true
		frontier = append(frontier, checkpoint.Task{Stage: stage})
	}

	for index, task := range tasks {
		for _, successor := range graph.static[task.Stage] {
			schedule(successor)
		}

		for _, join := range graph.joinsByPredecessor[task.Stage] {
			completed := joins[join.key]
			if !slices.Contains(completed, task.Stage) {
				completed = append(completed, task.Stage)
				slices.Sort(completed)
			}
			if len(completed) == len(join.predecessors) {
				delete(joins, join.key)
				schedule(join.to)
				continue
			}
			joins[join.key] = completed
		}

		edges := graph.routers[task.Stage]
		if len(edges) == 0 {
			continue
		}

		view := merged
		if task.Branch > 0 {
			branchView, err := graph.branchView(task, updates[index])
			if err != nil {
				return nil, &RoutingError{Stage: task.Stage, Err: err}
			}
			view = branchView
		}

		for _, edge := range edges {
			sends, err := route(ctx, edge.router, view)
			if err != nil {
				return nil, &RoutingError{Stage: task.Stage, Err: err}
			}

			for _, send := range sends {
				if !edge.successors[send.Stage] {
					return nil, &RoutingError{Stage: task.Stage, Err: fmt.Errorf("%w: %q", ErrUndeclaredSuccessor, send.Stage)}
				}
				if send.Stage == End {
					continue
				}
				if send.Payload == nil {
					schedule(send.Stage)
					continue
				}

				target := graph.stages[send.Stage]
				if err := target.inputSchema.Validate(state.Update(send.Payload)); err != nil {
					return nil, &RoutingError{Stage: task.Stage, Err: fmt.Errorf("payload for %q: %w", send.Stage, err)}
				}
				branch++
				frontier = append(frontier, checkpoint.Task{
					Stage:   send.Stage,
					Branch:  branch,
					Payload: maps.Clone(send.Payload),
				})
			}
		}
	}

	return frontier, nil
}

// branchView is the state a router sees after a branch task: the branch
// seed, in the graph schema, with the branch update applied.
func (graph *Graph) branchView(task checkpoint.Task, update state.Update) (state.State, error) {
	node := graph.stages[task.Stage]
	seeded, err := state.New(node.inputSchema).Apply(state.Update(task.Payload))
	if err != nil {
		return state.State{}, err
	}
	return seeded.Project(graph.schema).Apply(update)
}

// GetState returns the state recorded by the latest checkpoint of the
// thread. An empty thread yields a *checkpoint.NotFoundError.
func (graph *Graph) GetState(ctx context.Context, threadID string) (state.State, error) {
	if threadID == "" {
		return state.State{}, ErrEmptyThreadID
	}

	latest, err := graph.config.store.Latest(ctx, threadID)
	if err != nil {
		return state.State{}, fmt.Errorf("graph: load latest checkpoint: %w", err)
	}
	if latest == nil {
		return state.State{}, &checkpoint.NotFoundError{ThreadID: threadID}
	}
	return state.FromValues(graph.schema, latest.Values)
}

// History returns every checkpoint of the thread in sequence order.
func (graph *Graph) History(ctx context.Context, threadID string) ([]checkpoint.Checkpoint, error) {
	if threadID == "" {
		return nil, ErrEmptyThreadID
	}
	return graph.config.store.List(ctx, threadID)
}

// isCanceled reports whether err is a context cancellation or deadline.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
