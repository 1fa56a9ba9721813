// Package telemetry provides logging, metrics, and tracing for the
// deployment engine.
//
// The three components are independent and individually optional: a nil
// *Metrics or *Tracer is a valid no-op instance, so instrumented code
// observes unconditionally and configuration alone decides what is
// collected. Logging is zerolog-based with field helpers for the
// engine's correlation keys (session id, phase, stack type).
package telemetry
