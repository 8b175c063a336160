package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"tracecap/internal/capture"
	"tracecap/internal/models"
	"tracecap/internal/parser"
)

// After ReadErrorQuietAfter consecutive read errors only every
// ReadErrorLogEvery-th is logged, and the loop waits a little longer before
// each retry, up to MaxReadErrorBackoff.
const (
	ReadErrorQuietAfter = 16
	ReadErrorLogEvery   = 100
	readErrorBackoff    = 10 * time.Millisecond
	MaxReadErrorBackoff = time.Second
)

// State is the capture loop state.
type State int

const (
	Running State = iota
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Renderer writes decoded frames and the final statistics.
type Renderer interface {
	Print(frame models.RawFrame, out parser.Outcome) error
	PrintStats(stats models.CaptureStats) error
}

// Client represents a subscriber that receives every decoded frame.
type Client interface {
	SendMessage(msg models.WSMessage) error
}

// Status is a snapshot of the loop's progress.
type Status struct {
	State      string `json:"state"`
	Processed  int    `json:"processed"`
	Failed     int    `json:"failed"`
	Timeouts   int    `json:"timeouts"`
	ReadErrors int    `json:"readErrors"`
	Clients    int    `json:"clients"`
}

// Engine pulls frames from a capture source, dissects them and hands the
// result to the renderer and every registered client, one frame at a time.
type Engine struct {
	src  capture.Source
	pipe *parser.Pipeline
	out  Renderer
	log  *zap.SugaredLogger

	mu         sync.Mutex
	clients    map[Client]bool
	state      State
	processed  int
	failed     int
	timeouts   int
	readErrors int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for capture diagnostics.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates a new Engine.
func New(src capture.Source, pipe *parser.Pipeline, out Renderer, opts ...Option) *Engine {
	e := &Engine{
		src:     src,
		pipe:    pipe,
		out:     out,
		log:     zap.NewNop().Sugar(),
		clients: make(map[Client]bool),
		state:   Stopped,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterClient adds a client to receive packet broadcasts.
func (e *Engine) RegisterClient(c Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clients[c] = true
}

// UnregisterClient removes a client.
func (e *Engine) UnregisterClient(c Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.clients, c)
}

// State returns the current loop state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status returns a snapshot of the loop counters.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		State:      e.state.String(),
		Processed:  e.processed,
		Failed:     e.failed,
		Timeouts:   e.timeouts,
		ReadErrors: e.readErrors,
		Clients:    len(e.clients),
	}
}

// Run captures until count frames have been processed, or until ctx is
// cancelled, or until a replayed file is exhausted. With count zero only
// cancellation stops a live capture: read errors are logged and retried. A
// frame that fails to dissect is printed with its diagnostic and does not
// stop the loop. Once stopped, the source's statistics are retrieved and
// printed exactly once.
func (e *Engine) Run(ctx context.Context, count int) (models.CaptureStats, error) {
	e.mu.Lock()
	e.state = Running
	e.mu.Unlock()

	e.loop(ctx, count)

	e.mu.Lock()
	e.state = Stopped
	e.mu.Unlock()

	stats, err := e.src.Stats()
	if err != nil {
		e.log.Warnw("cannot retrieve capture statistics", "error", err)
		return stats, err
	}
	if err := e.out.PrintStats(stats); err != nil {
		e.log.Warnw("cannot print capture statistics", "error", err)
	}
	if payload, err := json.Marshal(stats); err == nil {
		e.broadcast(models.WSMessage{Type: models.MessageStats, Payload: payload})
	}
	e.broadcast(models.WSMessage{Type: models.MessageCaptureStopped})
	return stats, nil
}

func (e *Engine) loop(ctx context.Context, count int) {
	readErrors := 0
	for processed := 0; count == 0 || processed < count; {
		if ctx.Err() != nil {
			return
		}

		frame, err := e.src.Next()
		if err != nil {
			switch {
			case errors.Is(err, capture.ErrTimeout):
				e.mu.Lock()
				e.timeouts++
				e.mu.Unlock()
				e.log.Infow("no frame within read timeout", "processed", processed)
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				e.log.Debugw("capture source exhausted", "processed", processed)
				return
			}
			readErrors++
			e.mu.Lock()
			e.readErrors++
			e.mu.Unlock()
			if readErrors <= ReadErrorQuietAfter || readErrors%ReadErrorLogEvery == 0 {
				e.log.Warnw("cannot capture next packet", "error", err, "consecutive", readErrors)
			}
			if d := readErrorDelay(readErrors); d > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(d):
				}
			}
			continue
		}
		readErrors = 0
		processed++
		frame.Number = processed

		out := e.pipe.Dissect(frame)
		e.mu.Lock()
		e.processed = processed
		if !out.OK() {
			e.failed++
		}
		e.mu.Unlock()

		if err := e.out.Print(frame, out); err != nil {
			e.log.Warnw("cannot print frame", "frame", frame.Number, "error", err)
		}
		e.publish(frame, out)
	}
}

// readErrorDelay is the pause before the next read after n consecutive
// failures.
func readErrorDelay(n int) time.Duration {
	if n <= ReadErrorQuietAfter {
		return 0
	}
	d := time.Duration(n-ReadErrorQuietAfter) * readErrorBackoff
	return min(d, MaxReadErrorBackoff)
}

func (e *Engine) publish(frame models.RawFrame, out parser.Outcome) {
	e.mu.Lock()
	n := len(e.clients)
	e.mu.Unlock()
	if n == 0 {
		return
	}

	msg := models.FrameMessage{
		Number:        frame.Number,
		Timestamp:     frame.Info.Timestamp.Format(time.RFC3339Nano),
		CaptureLength: len(frame.Data),
		Length:        frame.Info.Length,
		LinkType:      frame.LinkType.String(),
		Tree:          out.Root,
	}
	if out.Err != nil {
		msg.Error = out.Err.Error()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		e.log.Warnw("cannot encode frame", "frame", frame.Number, "error", err)
		return
	}
	e.broadcast(models.WSMessage{Type: models.MessageFrame, Payload: payload})
}

func (e *Engine) broadcast(msg models.WSMessage) {
	e.mu.Lock()
	clients := make([]Client, 0, len(e.clients))
	for c := range e.clients {
		clients = append(clients, c)
	}
	e.mu.Unlock()

	for _, c := range clients {
		if err := c.SendMessage(msg); err != nil {
			e.log.Debugw("client send failed", "type", msg.Type, "error", err)
		}
	}
}
