package model

import (
	"time"
)

// Conversation represents a conversation thread. Messages are kept in
// insertion order and never reordered.
type Conversation struct {
	ID          string    `json:"id"`
	Messages    []Message `json:"messages"`
	Mode        string    `json:"mode,omitempty"`
	Index       string    `json:"index,omitempty"`
	Title       string    `json:"title,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// LastMessage returns a pointer to the tail message, or nil when empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// Settings is the persisted client settings blob. Absence of a field
// means default; the blob is versionless.
type Settings struct {
	Mode           string  `json:"mode,omitempty"`
	IndexName      string  `json:"index_name,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	Debug          bool    `json:"debug,omitempty"`
	AutoRegenerate bool    `json:"auto_regenerate,omitempty"`
}
