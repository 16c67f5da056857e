package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlens-ai/query-assistant/internal/model"
)

func newTestAccumulator() (*Accumulator, *model.Conversation, *SessionState) {
	conv := &model.Conversation{
		ID: "conv-1",
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "show me the errors"},
		},
	}
	state := &SessionState{}
	return NewAccumulator(conv, state), conv, state
}

func TestContentDeltasConcatenate(t *testing.T) {
	acc, conv, _ := newTestAccumulator()

	acc.Apply(&model.Event{Type: model.EventTypeContent, Delta: "Hello"})
	acc.Apply(&model.Event{Type: model.EventTypeContent, Delta: " world"})
	acc.Apply(&model.Event{Type: model.EventTypeDone})

	require.Len(t, conv.Messages, 2)
	last := conv.LastMessage()
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, "Hello world", last.Content)
	assert.Equal(t, StatusComplete, acc.Status())
}

func TestFirstDeltaAppendsAssistantMessage(t *testing.T) {
	acc, conv, _ := newTestAccumulator()

	acc.Apply(&model.Event{Type: model.EventTypeContent, Delta: "Hi"})

	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleAssistant, conv.LastMessage().Role)
	assert.Equal(t, "Hi", conv.LastMessage().Content)
}

func TestDebugIsDeferredUntilDone(t *testing.T) {
	acc, conv, _ := newTestAccumulator()

	debug := &model.DebugInfo{
		ExecutedQueries: []model.QueryResult{
			{Index: "logs", Success: true},
		},
		Timings: map[string]any{"total_ms": float64(120)},
	}

	acc.Apply(&model.Event{Type: model.EventTypeContent, Delta: "Answer"})
	acc.Apply(&model.Event{Type: model.EventTypeDebug, Debug: debug})

	// Not applied until the stream finishes.
	assert.Empty(t, conv.LastMessage().Meta.ExecutedQueries)

	acc.Apply(&model.Event{Type: model.EventTypeContent, Delta: " text"})
	acc.Apply(&model.Event{Type: model.EventTypeDone})

	last := conv.LastMessage()
	assert.Equal(t, "Answer text", last.Content)
	require.Len(t, last.Meta.ExecutedQueries, 1)
	assert.Equal(t, "logs", last.Meta.ExecutedQueries[0].Index)
	assert.Equal(t, debug.Timings, last.Meta.QueryExecutionMetadata)
}

func TestErrorEventFailsExchange(t *testing.T) {
	acc, conv, _ := newTestAccumulator()

	acc.Apply(&model.Event{Type: model.EventTypeContent, Delta: "partial"})
	acc.Apply(&model.Event{Type: model.EventTypeError, Error: &model.StreamError{Message: "backend unavailable"}})

	assert.Equal(t, StatusFailed, acc.Status())
	assert.Equal(t, "backend unavailable", acc.ErrorMessage())
	assert.Equal(t, "partial", conv.LastMessage().Content)
}

func TestCancelKeepsPartialContent(t *testing.T) {
	acc, conv, _ := newTestAccumulator()

	acc.Apply(&model.Event{Type: model.EventTypeContent, Delta: "Hello"})
	acc.Cancel()

	assert.Equal(t, StatusCancelled, acc.Status())
	assert.Equal(t, "Hello", conv.LastMessage().Content)
}

func TestCancelAfterCompletionIsNoOp(t *testing.T) {
	acc, _, _ := newTestAccumulator()

	acc.Apply(&model.Event{Type: model.EventTypeContent, Delta: "Hi"})
	acc.Apply(&model.Event{Type: model.EventTypeDone})
	acc.Cancel()

	assert.Equal(t, StatusComplete, acc.Status())
}

func TestModeDetectedUpdatesSessionState(t *testing.T) {
	acc, conv, state := newTestAccumulator()

	acc.Apply(&model.Event{
		Type:       model.EventTypeModeDetected,
		Mode:       "elasticsearch",
		Confidence: 0.92,
	})

	assert.Equal(t, "elasticsearch", state.DetectedMode)
	assert.Equal(t, 0.92, state.Confidence)
	assert.Equal(t, "elasticsearch", conv.Mode)
	// Past messages untouched.
	assert.Equal(t, "show me the errors", conv.Messages[0].Content)
}

func TestIndexSuggestionUpdatesSessionState(t *testing.T) {
	acc, conv, state := newTestAccumulator()

	acc.Apply(&model.Event{Type: model.EventTypeIndexSuggestion, SuggestedIndex: "app-logs"})

	assert.Equal(t, "app-logs", state.SuggestedIndex)
	assert.Equal(t, "app-logs", conv.Index)
}

func TestQueryResultsAttachToAssistantMessage(t *testing.T) {
	acc, conv, state := newTestAccumulator()

	acc.Apply(&model.Event{Type: model.EventTypeContent, Delta: "Answer."})
	acc.Apply(&model.Event{
		Type:    model.EventTypeQueryResults,
		Message: " Executed 1 query.",
		Results: []model.QueryResult{
			{Index: "logs", Success: true, Metadata: model.QueryMetadata{ExecutionTimeMs: 42}},
		},
		QueryCount:             1,
		QueryExecutionMetadata: map[string]any{"attempt": float64(1)},
	})

	last := conv.LastMessage()
	assert.Equal(t, "Answer. Executed 1 query.", last.Content)
	require.Len(t, last.Meta.ExecutedQueries, 1)
	assert.True(t, last.Meta.ExecutedQueries[0].Success)
	assert.Equal(t, 1, state.QueryCount)
	assert.True(t, state.SuccessfulAttempt)
}

func TestReplayProducesSameTranscript(t *testing.T) {
	events := []*model.Event{
		{Type: model.EventTypeContent, Delta: "a"},
		{Type: model.EventTypeContent, Delta: "b"},
		{Type: model.EventTypeContent, Delta: "c"},
		{Type: model.EventTypeDone},
	}

	first, firstConv, _ := newTestAccumulator()
	for _, ev := range events {
		first.Apply(ev)
	}

	second, secondConv, _ := newTestAccumulator()
	for _, ev := range events {
		second.Apply(ev)
	}

	assert.Equal(t, firstConv.LastMessage().Content, secondConv.LastMessage().Content)
	assert.Equal(t, "abc", firstConv.LastMessage().Content)
}
