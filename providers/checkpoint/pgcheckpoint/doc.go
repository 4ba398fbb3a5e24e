// Package pgcheckpoint implements checkpoint.Store on PostgreSQL via pgx/v5.
//
// Sequence numbers are assigned inside a transaction that first takes a
// transaction-scoped advisory lock keyed by the thread id. Concurrent writers
// of the same thread queue on the lock, so MAX(seq)+1 is always read after
// the previous insert committed, while writers of different threads proceed
// in parallel.
//
// Usage:
//
//	pool, _ := pgxpool.New(ctx, os.Getenv("DATABASE_URL"))
//	store := pgcheckpoint.New(pool)
//	if err := store.EnsureSchema(ctx); err != nil { ... }
//	builder := graph.NewBuilder(schema, graph.WithStore(store))
package pgcheckpoint
