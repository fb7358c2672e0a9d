// Package pipeline sequences one sketch through upload and the three remote
// stages, and runs independent pipelines side by side.
//
// The Orchestrator drives a single stage through its queue lifecycle
// (JOINING, SUBMITTED, then COMPLETED or FAILED) under a stage timeout. The
// Controller owns a run: it creates the session hash, uploads the sketch,
// feeds each stage's output path into the next stage's payload, and is the
// only place a terminal failure is logged. Observers receive every stage
// boundary so persistence, notifications, and terminal progress stay outside
// the sequencing code.
package pipeline
