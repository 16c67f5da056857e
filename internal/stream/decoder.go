// Package stream decodes newline-delimited JSON chat streams into
// typed events.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/searchlens-ai/query-assistant/internal/model"
	"github.com/searchlens-ai/query-assistant/pkg/logger"
	"github.com/searchlens-ai/query-assistant/pkg/metrics"
)

// State is the decoder lifecycle state.
type State int

const (
	// StateIdle means the read loop has not started.
	StateIdle State = iota
	// StateReading means the decoder is consuming the stream.
	StateReading
	// StateDone means the stream ended at a terminal event.
	StateDone
	// StateAborted means the consumer cancelled the stream.
	StateAborted
	// StateFailed means the transport failed mid-stream.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrTruncated is reported when the stream ends without a terminal
// event.
var ErrTruncated = errors.New("stream ended without terminal event")

// Decoder reassembles NDJSON lines across chunk boundaries and parses
// each into a typed event. Malformed lines are skipped, never fatal.
type Decoder struct {
	r      *bufio.Reader
	logger *logger.Logger

	mu    sync.Mutex
	state State
	err   error
}

// NewDecoder creates a decoder over a byte stream.
func NewDecoder(r io.Reader, log *logger.Logger) *Decoder {
	return &Decoder{
		r:      bufio.NewReader(r),
		logger: log,
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (d *Decoder) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the transport error after StateFailed, or nil.
func (d *Decoder) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Decoder) setState(s State, err error) {
	d.mu.Lock()
	d.state = s
	d.err = err
	d.mu.Unlock()
}

// Events starts the read loop and returns the event channel. The
// channel closes once the stream reaches a terminal state. Cancelling
// ctx transitions to StateAborted; callers must also close the
// underlying reader so a blocked read unblocks (the chat client ties
// the response body to the same context).
func (d *Decoder) Events(ctx context.Context) <-chan *model.Event {
	out := make(chan *model.Event)
	d.setState(StateReading, nil)

	go func() {
		defer close(out)

		for {
			line, readErr := d.r.ReadBytes('\n')

			if ev := d.parseLine(line); ev != nil {
				select {
				case out <- ev:
				case <-ctx.Done():
					d.setState(StateAborted, ctx.Err())
					return
				}
				if ev.Terminal() {
					d.setState(StateDone, nil)
					return
				}
			}

			if readErr != nil {
				switch {
				case ctx.Err() != nil, errors.Is(readErr, context.Canceled):
					d.setState(StateAborted, ctx.Err())
				case errors.Is(readErr, io.EOF):
					d.setState(StateFailed, ErrTruncated)
				default:
					d.setState(StateFailed, readErr)
				}
				return
			}
		}
	}()

	return out
}

// parseLine parses one line, returning nil for blank, malformed, or
// unknown-typed lines. A parse failure discards only that line.
func (d *Decoder) parseLine(line []byte) *model.Event {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	ev, err := model.ParseEvent(line)
	if err != nil {
		metrics.MalformedLines.Inc()
		d.logger.Warn("skipping malformed stream line", zap.Error(err))
		return nil
	}
	if !ev.Known() {
		d.logger.Debug("skipping unknown event type", zap.String("type", string(ev.Type)))
		return nil
	}

	metrics.EventsDecoded.WithLabelValues(string(ev.Type)).Inc()
	return ev
}
