package model

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message represents a conversation message.
type Message struct {
	Role    Role        `json:"role"`
	Content string      `json:"content"`
	Meta    MessageMeta `json:"meta,omitempty"`
}

// MessageMeta carries per-message metadata attached after streaming.
type MessageMeta struct {
	IncludeContext         bool           `json:"include_context,omitempty"`
	ExecutedQueries        []QueryResult  `json:"executed_queries,omitempty"`
	QueryExecutionMetadata map[string]any `json:"query_execution_metadata,omitempty"`
	QueryID                string         `json:"query_id,omitempty"`
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Messages              []Message `json:"messages"`
	Mode                  string    `json:"mode,omitempty"`
	Stream                bool      `json:"stream"`
	ConversationID        string    `json:"conversation_id,omitempty"`
	Temperature           float64   `json:"temperature,omitempty"`
	Debug                 bool      `json:"debug,omitempty"`
	IndexName             string    `json:"index_name,omitempty"`
	MappingResponseFormat string    `json:"mapping_response_format,omitempty"`
}

// RegenerateRequest is the request body for POST /api/query/regenerate.
type RegenerateRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	IndexName      string `json:"index_name"`
	Question       string `json:"question"`
}

// RegenerateResult is the response body for a regeneration attempt.
// RawResults.Error set means the attempt failed; QueryID references the
// stored attempt for on-demand retrieval via GET /api/query/attempt/{id}.
type RegenerateResult struct {
	QueryID    string             `json:"query_id,omitempty"`
	RawResults *RegenerateResults `json:"raw_results,omitempty"`
}

// RegenerateResults holds the outcome of a regeneration attempt.
type RegenerateResults struct {
	Error   string        `json:"error,omitempty"`
	Results []QueryResult `json:"results,omitempty"`
}
