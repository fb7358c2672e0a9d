// Package main hosts the sketchforge CLI entrypoint and command graph.
//
// Commands resolve configuration once, build a gradio client, history store,
// and notifier, and hand sketches to the pipeline controller. Run output goes
// to stdout; structured logs go to stderr and the state directory log file.
package main
