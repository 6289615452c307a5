// Package trace records what the evaluator is doing: which command runs,
// which scenario each worker holds and, at debug level, every discriminant
// read and lifted immediate.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	ctfe run --trace=- --trace-level=detail scenarios/*.toml
//
// # Architecture
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer dumped when a run hits an interpreter bug
//   - MultiTracer: combines multiple tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: only the failure dump
//   - LevelPhase: commands and phases
//   - LevelDetail: one span per scenario
//   - LevelDebug: everything including single queries
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeModule, "scenario:niche.toml", parentID)
//	defer span.End("")
package trace
