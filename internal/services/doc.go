// Package services defines shared utilities consumed by the pipeline and the
// remote service integrations.
//
// Key responsibilities:
//   - Context helpers that stamp session hashes, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     (transport, malformed response, timeout, invalid argument) so the
//     pipeline controller and run history can report them consistently.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
