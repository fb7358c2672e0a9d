// Package history persists pipeline runs in SQLite.
//
// Each run is keyed by its session hash and records the prompt, the sketch it
// started from, every stage result path the service returned, and either the
// final image path or the classified failure. The store mirrors how runs move
// through the pipeline: Begin when the session is created, RecordStage after
// each completed stage, then exactly one of Complete or Fail.
//
// Writes retry on SQLITE_BUSY with bounded backoff so concurrent batch runs
// sharing one database do not surface transient lock errors.
package history
