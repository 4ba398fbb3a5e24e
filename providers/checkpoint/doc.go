// Package checkpoint defines the Store interface used by the graph engine to
// persist a snapshot of the run after every stage.
//
// Checkpoints are keyed by (thread id, seq). Within a thread, seq starts at 1
// and is strictly monotonic and gap-free, even under concurrent [Store.Put]
// calls: every implementation serialises writers per thread. The checkpoint
// with the highest seq is the authoritative state of the thread.
//
// A [Snapshot] records the state values plus what the engine needs to resume
// precisely: the superstep number, the pending task frontier ([Snapshot.Next])
// and the partially satisfied fan-in joins ([Snapshot.Joins]).
//
// Bundled implementations live in sibling packages:
//   - [github.com/leofalp/sleuth/providers/checkpoint/inmemory]
//   - [github.com/leofalp/sleuth/providers/checkpoint/sqlitestore]
//   - [github.com/leofalp/sleuth/providers/checkpoint/pgcheckpoint]
//
// [github.com/leofalp/sleuth/providers/checkpoint/checkpointtest] holds the
// contract suite every implementation runs.
package checkpoint
