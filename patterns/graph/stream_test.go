package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/leofalp/sleuth/core/state"
)

func describeEvent(event Event) string {
	switch event.Type {
	case EventStepStart:
		return fmt.Sprintf("step_start:%d:%s", event.Step, strings.Join(event.Stages, ","))
	case EventStageComplete:
		return fmt.Sprintf("stage_complete:%d:%s", event.Step, event.Stage)
	case EventCheckpoint:
		return fmt.Sprintf("checkpoint:%d:%s:%d", event.Step, event.Stage, event.Seq)
	default:
		return string(event.Type)
	}
}

func TestStream_EventOrder(testCase *testing.T) {
	stages := map[string]Stage{
		"a": emitStage(state.Update{"items": "a"}),
		"b": emitStage(state.Update{"items": "b"}),
	}
	compiled := mustCompile(testCase, linearBuilder(testCase, stages, "a", "b"))

	described := make([]string, 0)
	var final *state.State
	for event, err := range compiled.Stream(context.Background(), map[string]any{}, "events").Iter() {
		if err != nil {
			testCase.Fatalf("unexpected error %v", err)
		}
		described = append(described, describeEvent(event))
		if event.Type == EventStageComplete && event.Stage == "a" {
			if event.Update["items"] != "a" {
				testCase.Errorf("expected the stage update on the event, got %v", event.Update)
			}
		}
		if event.Type == EventDone {
			final = event.State
		}
	}

	expected := []string{
		"step_start:1:a",
		"stage_complete:1:a",
		"checkpoint:1:a:2",
		"step_start:2:b",
		"stage_complete:2:b",
		"checkpoint:2:b:3",
		"done",
	}
	if strings.Join(described, " ") != strings.Join(expected, " ") {
		testCase.Errorf("unexpected events:\n got  %v\n want %v", described, expected)
	}
	if final == nil || final.Len("items") != 2 {
		testCase.Errorf("expected the final state on the done event, got %v", final)
	}
}

func TestStream_CompletionOrder(testCase *testing.T) {
	release := make(chan struct{})
	search := func(ctx context.Context, st state.State) (state.Update, error) {
		query, _ := state.As[string](st, "query")
		if query == "first" {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return state.Update{"items": query}, nil
	}

	builder := NewBuilder(testSchema)
	mustRegister(testCase, builder, "generate", emitStage(nil))
	mustRegister(testCase, builder, "search", StageFunc(search))
	mustEdge(testCase, builder, Start, "generate")
	if err := builder.AddConditionalEdge("generate", mapQueries("search"), "search"); err != nil {
		testCase.Fatal(err)
	}
	mustEdge(testCase, builder, "search", End)
	compiled := mustCompile(testCase, builder)

	completed := make([]int, 0)
	var final *state.State
	for event, err := range compiled.Stream(context.Background(), map[string]any{"topic": "first,second"}, "completion").Iter() {
		if err != nil {
			testCase.Fatal(err)
		}
		if event.Type == EventStageComplete && event.Stage == "search" {
			completed = append(completed, event.Branch)
			if event.Branch == 2 {
				close(release)
			}
		}
		if event.Type == EventDone {
			final = event.State
		}
	}

	if len(completed) != 2 || completed[0] != 2 || completed[1] != 1 {
		testCase.Errorf("expected completion order [2 1], got %v", completed)
	}
	found, _ := state.As[[]string](*final, "items")
	if strings.Join(found, ",") != "first,second" {
		testCase.Errorf("expected merge in spawn order, got %v", found)
	}
}

func TestStream_NotRestartable(testCase *testing.T) {
	compiled := mustCompile(testCase, linearBuilder(testCase, map[string]Stage{"only": emitStage(nil)}, "only"))
	stream := compiled.Stream(context.Background(), map[string]any{}, "once")

	if _, err := stream.Collect(); err != nil {
		testCase.Fatalf("first Collect() error = %v", err)
	}

	events := 0
	for event, err := range stream.Iter() {
		events++
		if !errors.Is(err, ErrStreamConsumed) {
			testCase.Errorf("expected ErrStreamConsumed, got %v", err)
		}
		if event.Type != EventError {
			testCase.Errorf("expected an error event, got %s", event.Type)
		}
	}
	if events != 1 {
		testCase.Errorf("expected a single event on reuse, got %d", events)
	}
}

func TestStream_EarlyBreakStopsRun(testCase *testing.T) {
	second := counting(nil)
	stages := map[string]Stage{
		"first":  emitStage(state.Update{"items": "first"}),
		"second": second,
	}
	compiled := mustCompile(testCase, linearBuilder(testCase, stages, "first", "second"))

	for event, err := range compiled.Stream(context.Background(), map[string]any{}, "early").Iter() {
		if err != nil {
			testCase.Fatal(err)
		}
		if event.Type == EventStageComplete {
			break
		}
	}

	if second.calls.Load() != 0 {
		testCase.Errorf("expected the run to stop, second ran %d times", second.calls.Load())
	}
	history, err := compiled.History(context.Background(), "early")
	if err != nil {
		testCase.Fatal(err)
	}
	if len(history) != 1 {
		testCase.Errorf("expected only the input checkpoint, got %d", len(history))
	}
}

func TestStream_ErrorEvent(testCase *testing.T) {
	failing := StageFunc(func(context.Context, state.State) (state.Update, error) {
		return nil, errors.New("kaput")
	})
	compiled := mustCompile(testCase, linearBuilder(testCase, map[string]Stage{"broken": failing}, "broken"))

	var last Event
	var lastErr error
	for event, err := range compiled.Stream(context.Background(), map[string]any{}, "error-event").Iter() {
		last, lastErr = event, err
	}

	if last.Type != EventError || lastErr == nil {
		testCase.Fatalf("expected a final error event, got %s / %v", last.Type, lastErr)
	}
	if !strings.Contains(last.Error, "kaput") {
		testCase.Errorf("expected the cause in the event, got %q", last.Error)
	}
}
