// Package model defines data structures for the query assistant.
package model

import (
	"encoding/json"
)

// EventType represents the type of a streamed NDJSON event.
type EventType string

const (
	EventTypeContent         EventType = "content"
	EventTypeError           EventType = "error"
	EventTypeDone            EventType = "done"
	EventTypeDebug           EventType = "debug"
	EventTypeModeDetected    EventType = "mode_detected"
	EventTypeIndexSuggestion EventType = "index_suggestion"
	EventTypeQueryResults    EventType = "query_results"
)

// Event is one NDJSON record from a chat stream. Exactly one variant's
// field set is populated, keyed by Type. Unknown types are preserved so
// consumers can handle them as an explicit case instead of dropping
// them silently at the parse layer.
type Event struct {
	Type EventType `json:"type"`

	// content
	Delta string `json:"delta,omitempty"`

	// error
	Error *StreamError `json:"error,omitempty"`

	// debug
	Debug *DebugInfo `json:"debug,omitempty"`

	// mode_detected
	Mode            string   `json:"mode,omitempty"`
	Confidence      float64  `json:"confidence,omitempty"`
	Intent          string   `json:"intent,omitempty"`
	RelevantIndices []string `json:"relevant_indices,omitempty"`

	// index_suggestion
	SuggestedIndex string `json:"suggested_index,omitempty"`

	// query_results
	Message                string         `json:"message,omitempty"`
	Results                []QueryResult  `json:"results,omitempty"`
	QueryCount             int            `json:"query_count,omitempty"`
	QueryExecutionMetadata map[string]any `json:"query_execution_metadata,omitempty"`
}

// Known reports whether the event type is one this client understands.
func (e *Event) Known() bool {
	switch e.Type {
	case EventTypeContent, EventTypeError, EventTypeDone, EventTypeDebug,
		EventTypeModeDetected, EventTypeIndexSuggestion, EventTypeQueryResults:
		return true
	}
	return false
}

// Terminal reports whether no further events follow on this stream.
// An error event ends its stream; the upstream never interleaves
// content after one.
func (e *Event) Terminal() bool {
	return e.Type == EventTypeDone || e.Type == EventTypeError
}

// ParseEvent parses a single NDJSON line into an Event.
func ParseEvent(line []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// StreamError is the payload of an error event.
type StreamError struct {
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// DebugInfo is the payload of a debug event. It arrives interleaved
// with content and is merged onto the finished message at done.
type DebugInfo struct {
	ExecutedQueries []QueryResult  `json:"executed_queries,omitempty"`
	Timings         map[string]any `json:"timings,omitempty"`
}

// QueryResult describes one executed search query.
type QueryResult struct {
	Index     string          `json:"index"`
	Success   bool            `json:"success"`
	QueryData json.RawMessage `json:"query_data,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Metadata  QueryMetadata   `json:"metadata,omitempty"`
}

// QueryMetadata carries execution statistics for a query.
type QueryMetadata struct {
	ExecutionTimeMs int64 `json:"execution_time_ms,omitempty"`
}
