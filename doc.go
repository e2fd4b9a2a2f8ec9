package main

// apiload drives a simulated-user load against a REST API and aggregates
// request statistics while it runs. Each simulated user is an independent
// goroutine that:
//
// - fetches the problem catalog once and caches the returned ids
// - lists the secondary resource on every pass
// - POSTs to a randomly chosen per-id action endpoint
// - occasionally (20% of passes) hits the liveness endpoint
// - pauses for a think time drawn uniformly from [min-think, max-think]
//
// Every request, whether it succeeds, returns an HTTP error, or fails at the
// transport level, is recorded into a single shared statistics store as one
// atomic compound update. A background reporter prints a summary of the live
// store every few seconds; at the end of the run the final store is persisted
// to JSON and rendered into a text report plus response-time charts.
//
// The run is time-bounded: after --duration the stop channel is closed and
// sessions are joined with a bounded grace period. Sessions that are still
// inside an HTTP call are abandoned; the store tolerates their late writes.
//
// With --report-only the tool skips load generation entirely and regenerates
// the report from a previously persisted stats file.
//
// With --telemetry-host set, every session iteration and request is exported
// as OTLP trace data, so the load generator's own view of the test can be
// correlated with the target service's instrumentation.
