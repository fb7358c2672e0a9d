package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"sketchforge/internal/pipeline"
	"sketchforge/internal/services/gradio"
)

// progressObserver prints one status line per stage boundary. Batch runs
// share it, so each line is prefixed with the run's session hash.
type progressObserver struct {
	pipeline.NopObserver

	mu       sync.Mutex
	out      io.Writer
	colorize bool
}

func newProgressObserver(out io.Writer, colorize bool) *progressObserver {
	return &progressObserver{out: out, colorize: colorize}
}

func (p *progressObserver) StageStarted(_ context.Context, hash string, stage int) {
	p.print(hash, stage, statusInfo, "started")
}

func (p *progressObserver) QueueEvent(_ context.Context, hash string, stage int, ev gradio.Event) {
	if ev.Msg != gradio.MsgEstimation || ev.Rank == nil {
		return
	}
	msg := fmt.Sprintf("queued at position %d", *ev.Rank+1)
	if ev.QueueSize != nil {
		msg += fmt.Sprintf(" of %d", *ev.QueueSize)
	}
	p.print(hash, stage, statusInfo, msg)
}

func (p *progressObserver) StageCompleted(_ context.Context, hash string, result pipeline.StageResult) {
	p.print(hash, result.Stage, statusOK, fmt.Sprintf("%s (%s)", result.Path, result.Duration.Round(10*time.Millisecond)))
}

func (p *progressObserver) StageFailed(_ context.Context, hash string, stage int, err error) {
	p.print(hash, stage, statusError, err.Error())
}

func (p *progressObserver) print(hash string, stage int, kind statusKind, msg string) {
	label := fmt.Sprintf("%s %s", hash, pipeline.StageName(stage))
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, renderStatusLine(label, kind, msg, p.colorize))
}
