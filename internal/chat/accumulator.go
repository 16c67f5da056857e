// Package chat implements the client side of the streaming chat
// protocol: event accumulation, cancellation, persistence, and the
// auto-regenerate background worker.
package chat

import (
	"github.com/searchlens-ai/query-assistant/internal/model"
)

// Status is the terminal status of a chat exchange.
type Status string

const (
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// SessionState is ambient per-session state mutated by out-of-band
// events. It never affects past messages.
type SessionState struct {
	DetectedMode      string
	Confidence        float64
	SuggestedIndex    string
	QueryCount        int
	SuccessfulAttempt bool
}

// Accumulator folds stream events into the in-progress assistant
// message. Content deltas concatenate in order, so replaying the same
// ordered sequence produces the same transcript.
type Accumulator struct {
	conv    *model.Conversation
	session *SessionState

	// Debug payloads arrive interleaved with content and must not
	// interrupt delta ordering; held back until done.
	pendingDebug *model.DebugInfo

	status   Status
	errorMsg string
}

// NewAccumulator creates an accumulator over a conversation.
func NewAccumulator(conv *model.Conversation, session *SessionState) *Accumulator {
	return &Accumulator{
		conv:    conv,
		session: session,
		status:  StatusStreaming,
	}
}

// Status returns the exchange status.
func (a *Accumulator) Status() Status {
	return a.status
}

// ErrorMessage returns the user-facing message from an error event.
func (a *Accumulator) ErrorMessage() string {
	return a.errorMsg
}

// Apply folds one event into the transcript or the session state.
func (a *Accumulator) Apply(ev *model.Event) {
	switch ev.Type {
	case model.EventTypeContent:
		a.appendDelta(ev.Delta)

	case model.EventTypeDebug:
		a.pendingDebug = ev.Debug

	case model.EventTypeDone:
		a.finish()

	case model.EventTypeError:
		a.status = StatusFailed
		if ev.Error != nil {
			a.errorMsg = ev.Error.Message
		}

	case model.EventTypeModeDetected:
		a.session.DetectedMode = ev.Mode
		a.session.Confidence = ev.Confidence
		a.conv.Mode = ev.Mode

	case model.EventTypeIndexSuggestion:
		a.session.SuggestedIndex = ev.SuggestedIndex
		if a.conv.Index == "" {
			a.conv.Index = ev.SuggestedIndex
		}

	case model.EventTypeQueryResults:
		a.applyQueryResults(ev)
	}
}

// Cancel marks the exchange cancelled. Content accumulated so far is
// kept exactly as received.
func (a *Accumulator) Cancel() {
	if a.status == StatusStreaming {
		a.status = StatusCancelled
	}
}

// Fail marks the exchange failed by transport loss.
func (a *Accumulator) Fail() {
	if a.status == StatusStreaming {
		a.status = StatusFailed
	}
}

// appendDelta concatenates a delta onto the tail assistant message,
// appending a fresh one when the tail is not an assistant message.
func (a *Accumulator) appendDelta(delta string) {
	last := a.conv.LastMessage()
	if last == nil || last.Role != model.RoleAssistant {
		a.conv.Messages = append(a.conv.Messages, model.Message{
			Role:    model.RoleAssistant,
			Content: delta,
		})
		return
	}
	last.Content += delta
}

// finish merges the deferred debug payload onto the finished assistant
// message.
func (a *Accumulator) finish() {
	if a.status == StatusStreaming {
		a.status = StatusComplete
	}
	if a.pendingDebug == nil {
		return
	}
	last := a.conv.LastMessage()
	if last == nil || last.Role != model.RoleAssistant {
		return
	}
	if len(a.pendingDebug.ExecutedQueries) > 0 {
		last.Meta.ExecutedQueries = a.pendingDebug.ExecutedQueries
		last.Meta.QueryExecutionMetadata = a.pendingDebug.Timings
	}
	a.pendingDebug = nil
}

// applyQueryResults appends the summary text and attaches executed
// queries to the just-completed assistant message. It never blocks the
// main content stream.
func (a *Accumulator) applyQueryResults(ev *model.Event) {
	if ev.Message != "" {
		a.appendDelta(ev.Message)
	}

	a.session.QueryCount = ev.QueryCount
	a.session.SuccessfulAttempt = false
	for _, result := range ev.Results {
		if result.Success {
			a.session.SuccessfulAttempt = true
			break
		}
	}

	last := a.conv.LastMessage()
	if last != nil && last.Role == model.RoleAssistant && len(ev.Results) > 0 {
		last.Meta.ExecutedQueries = ev.Results
		last.Meta.QueryExecutionMetadata = ev.QueryExecutionMetadata
	}
}
