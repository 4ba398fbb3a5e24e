package graph

import "context"

type runInfoKey struct{}

// RunInfo describes the invocation a stage is running in. The engine stores
// it in the context passed to Stage.Run.
type RunInfo struct {
	ThreadID string
	RunID    string
	Stage    string
	// Branch is the mapping branch index, zero for a regular invocation.
	Branch int
	Step   int
}

// RunInfoFromContext returns the RunInfo of the current stage invocation.
func RunInfoFromContext(ctx context.Context) (RunInfo, bool) {
	if ctx == nil {
		return RunInfo{}, false
	}
	info, ok := ctx.Value(runInfoKey{}).(RunInfo)
	return info, ok
}

func contextWithRunInfo(ctx context.Context, info RunInfo) context.Context {
	return context.WithValue(ctx, runInfoKey{}, info)
}
