// Package payload builds the stage request bodies submitted to the remote
// queue.
//
// Each stage has its own variant (SketchPayload, ImagePayload, RefinePayload)
// with a different positional data list, but all of them share one Envelope
// (session hash, fn_index, trigger id, null event data) and serialize through
// Encode. Builders are pure: they perform no I/O and only fail with
// services.ErrInvalidArgument on unusable input.
//
// Stage parameters are plain structs with Default* constructors so callers can
// override any value from configuration.
package payload
