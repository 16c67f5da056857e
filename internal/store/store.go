// Package store persists conversation state to a key-value repository.
package store

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/searchlens-ai/query-assistant/internal/model"
	"github.com/searchlens-ai/query-assistant/pkg/logger"
	"github.com/searchlens-ai/query-assistant/pkg/metrics"
)

// ErrNotFound is returned by a KV when a key is absent.
var ErrNotFound = errors.New("key not found")

// KV is the repository interface the store is built on. Implementations
// must be safe for concurrent use.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	// SetMulti writes all pairs in one atomic batch; a subsequent Get
	// never observes a partial write.
	SetMulti(pairs map[string][]byte) error
	Delete(key string) error
	Close() error
}

const titleLimit = 50

// Store serializes the conversation map, the current-conversation
// pointer and the settings blob under a key namespace. Persistence
// failures are logged and swallowed; they never propagate into the
// caller's send path.
type Store struct {
	kv     KV
	ns     string
	logger *logger.Logger
	mu     sync.Mutex
}

// New creates a store over the given repository, namespaced by ns.
func New(kv KV, ns string, log *logger.Logger) *Store {
	return &Store{kv: kv, ns: ns, logger: log}
}

func (s *Store) conversationsKey() string { return s.ns + "/conversations" }
func (s *Store) currentKey() string       { return s.ns + "/current" }
func (s *Store) settingsKey() string      { return s.ns + "/settings" }

// Load reads the persisted conversation map and current pointer.
// Structurally invalid entries are pruned and the cleaned blob is
// rewritten; a store-wide parse failure resets both the blob and the
// pointer instead of failing. A missing blob yields an empty map.
func (s *Store) Load() (map[string]*model.Conversation, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversations, pruned, ok := s.loadConversations()
	if !ok {
		s.logger.Warn("conversation store unreadable, resetting")
		s.delete(s.conversationsKey())
		s.delete(s.currentKey())
		return map[string]*model.Conversation{}, ""
	}
	if pruned > 0 {
		s.logger.Warn("pruned invalid conversations", zap.Int("count", pruned))
		s.writeConversations(conversations)
	}

	current := ""
	if raw, err := s.kv.Get(s.currentKey()); err == nil {
		current = string(raw)
	}
	// A dangling pointer is treated as absent.
	if _, exists := conversations[current]; !exists {
		current = ""
	}

	return conversations, current
}

// loadConversations returns the valid entries, the pruned count, and
// whether the blob itself was readable.
func (s *Store) loadConversations() (map[string]*model.Conversation, int, bool) {
	raw, err := s.kv.Get(s.conversationsKey())
	if errors.Is(err, ErrNotFound) {
		return map[string]*model.Conversation{}, 0, true
	}
	if err != nil {
		return nil, 0, false
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, 0, false
	}

	conversations := make(map[string]*model.Conversation, len(entries))
	pruned := 0
	for id, entry := range entries {
		var conv model.Conversation
		if err := json.Unmarshal(entry, &conv); err != nil || conv.ID == "" || conv.Messages == nil {
			metrics.ConversationsPruned.Inc()
			pruned++
			continue
		}
		conversations[id] = &conv
	}
	return conversations, pruned, true
}

// Save merges the conversation into the persisted map, stamps
// lastUpdated, derives a title from the first user message when none
// is set, and moves the current pointer to it. The map and pointer are
// written in one atomic batch.
func (s *Store) Save(conv *model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversations, _, ok := s.loadConversations()
	if !ok {
		conversations = map[string]*model.Conversation{}
	}

	conv.LastUpdated = time.Now().UTC().Truncate(time.Millisecond)
	if conv.Title == "" {
		conv.Title = deriveTitle(conv)
	}
	conversations[conv.ID] = conv

	blob, err := json.Marshal(conversations)
	if err != nil {
		s.fail("save", err)
		return
	}
	err = s.kv.SetMulti(map[string][]byte{
		s.conversationsKey(): blob,
		s.currentKey():       []byte(conv.ID),
	})
	if err != nil {
		s.fail("save", err)
	}
}

// Delete removes a conversation; the current pointer is cleared when
// it referenced the deleted entry.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversations, _, ok := s.loadConversations()
	if !ok {
		return
	}
	delete(conversations, id)
	s.writeConversations(conversations)

	if raw, err := s.kv.Get(s.currentKey()); err == nil && string(raw) == id {
		s.delete(s.currentKey())
	}
}

// SaveSettings persists the settings blob.
func (s *Store) SaveSettings(settings *model.Settings) {
	blob, err := json.Marshal(settings)
	if err != nil {
		s.fail("settings", err)
		return
	}
	if err := s.kv.Set(s.settingsKey(), blob); err != nil {
		s.fail("settings", err)
	}
}

// LoadSettings reads the settings blob; defaults on absence or
// corruption.
func (s *Store) LoadSettings() *model.Settings {
	settings := &model.Settings{}
	raw, err := s.kv.Get(s.settingsKey())
	if err != nil {
		return settings
	}
	if err := json.Unmarshal(raw, settings); err != nil {
		return &model.Settings{}
	}
	return settings
}

func (s *Store) writeConversations(conversations map[string]*model.Conversation) {
	blob, err := json.Marshal(conversations)
	if err != nil {
		s.fail("write", err)
		return
	}
	if err := s.kv.Set(s.conversationsKey(), blob); err != nil {
		s.fail("write", err)
	}
}

func (s *Store) delete(key string) {
	if err := s.kv.Delete(key); err != nil && !errors.Is(err, ErrNotFound) {
		s.fail("delete", err)
	}
}

func (s *Store) fail(op string, err error) {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	s.logger.Error("conversation store operation failed",
		zap.String("op", op),
		zap.Error(err),
	)
}

// deriveTitle builds a title from the first user message, truncated to
// titleLimit runes with an ellipsis.
func deriveTitle(conv *model.Conversation) string {
	for _, msg := range conv.Messages {
		if msg.Role != model.RoleUser || msg.Content == "" {
			continue
		}
		runes := []rune(msg.Content)
		if len(runes) <= titleLimit {
			return msg.Content
		}
		return string(runes[:titleLimit]) + "..."
	}
	return "New Conversation"
}
