// Package parse extracts structured values from free-form completion output.
//
// Models wrap data in prose and markdown fences and often emit slightly
// broken JSON, so [JSON] strips fences, isolates the first JSON value and
// retries through jsonrepair before giving up. [Queries] turns a sentence
// splitter answer into a clean list, accepting either marker-separated text
// or a JSON array.
package parse
