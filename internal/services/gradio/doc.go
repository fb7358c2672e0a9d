// Package gradio talks to the remote queue-based inference app that runs the
// sketch pipeline.
//
// # Endpoints
//
//	POST {base}/upload                                  multipart "files" upload
//	GET  {base}/queue/join?fn_index=N&session_hash=H   opens the stage event stream
//	POST {base}/queue/data                              submits the stage payload
//	GET  {base}/file={path}                             downloads a stored asset
//	GET  {base}/config                                  app config (health check)
//
// # Queue protocol
//
// Join opens a Channel. When the service answers with a server-sent event
// stream, the channel keeps it open: the first event carrying an event_id
// (normally "send_data") supplies the token stamped into the submission, and
// later events on the same stream report queue rank, progress, and finally
// "process_completed". When the service answers with plain JSON instead, the
// token is read from the body and completion is expected on the data
// response. Submit consumes whichever stream is live until the completion
// event arrives, the stream closes, or the context deadline passes.
//
// # Parsing
//
// Response shapes are owned by a ResponseParser. GradioParser is the default;
// swap it with WithParser when the upstream schema differs.
//
// # Errors
//
// Every failure is tagged with a services marker: ErrTransport for network and
// HTTP status failures, ErrMalformedResponse when the expected field is
// missing, ErrTimeout when a deadline expires. Nothing is retried here.
package gradio
