package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlens-ai/query-assistant/internal/model"
	"github.com/searchlens-ai/query-assistant/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kv, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return New(kv, "test", logger.Nop())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := newTestStore(t)

	conv := &model.Conversation{
		ID:   "conv-1",
		Mode: "elasticsearch",
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "show me the errors"},
			{Role: model.RoleAssistant, Content: "Here they are."},
		},
	}
	st.Save(conv)

	conversations, current := st.Load()
	assert.Equal(t, "conv-1", current)
	loaded := conversations["conv-1"]
	require.NotNil(t, loaded)
	assert.Equal(t, conv.Messages, loaded.Messages)
	assert.Equal(t, "elasticsearch", loaded.Mode)
	assert.False(t, loaded.LastUpdated.IsZero())
}

func TestSaveDerivesTitleFromFirstUserMessage(t *testing.T) {
	st := newTestStore(t)

	st.Save(&model.Conversation{
		ID: "conv-1",
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "short question"},
		},
	})
	conversations, _ := st.Load()
	assert.Equal(t, "short question", conversations["conv-1"].Title)

	long := strings.Repeat("x", 80)
	st.Save(&model.Conversation{
		ID:       "conv-2",
		Messages: []model.Message{{Role: model.RoleUser, Content: long}},
	})
	conversations, _ = st.Load()
	title := conversations["conv-2"].Title
	assert.Equal(t, strings.Repeat("x", 50)+"...", title)

	st.Save(&model.Conversation{ID: "conv-3", Messages: []model.Message{}})
	conversations, _ = st.Load()
	assert.Equal(t, "New Conversation", conversations["conv-3"].Title)
}

func TestSaveKeepsExistingTitle(t *testing.T) {
	st := newTestStore(t)

	st.Save(&model.Conversation{
		ID:       "conv-1",
		Title:    "Renamed",
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})

	conversations, _ := st.Load()
	assert.Equal(t, "Renamed", conversations["conv-1"].Title)
}

func TestLoadPrunesInvalidEntries(t *testing.T) {
	kv, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	st := New(kv, "test", logger.Nop())

	// One valid entry next to one missing its required fields.
	blob := `{
		"conv-1": {"id":"conv-1","messages":[{"role":"user","content":"hi"}]},
		"conv-2": {"title":"no id or messages"}
	}`
	require.NoError(t, kv.Set("test/conversations", []byte(blob)))

	conversations, _ := st.Load()
	assert.Len(t, conversations, 1)
	assert.Contains(t, conversations, "conv-1")

	// The cleaned blob was rewritten; a direct reload sees one entry.
	raw, err := kv.Get("test/conversations")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "no id or messages")
}

func TestLoadResetsCorruptedBlob(t *testing.T) {
	kv, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	st := New(kv, "test", logger.Nop())

	require.NoError(t, kv.Set("test/conversations", []byte("not json")))
	require.NoError(t, kv.Set("test/current", []byte("conv-1")))

	conversations, current := st.Load()
	assert.Empty(t, conversations)
	assert.Empty(t, current)

	_, err = kv.Get("test/conversations")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = kv.Get("test/current")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadIgnoresDanglingCurrentPointer(t *testing.T) {
	st := newTestStore(t)

	st.Save(&model.Conversation{
		ID:       "conv-1",
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	st.Delete("conv-1")

	conversations, current := st.Load()
	assert.Empty(t, conversations)
	assert.Empty(t, current)
}

func TestDeleteClearsCurrentPointerOnlyForDeleted(t *testing.T) {
	st := newTestStore(t)

	st.Save(&model.Conversation{ID: "conv-1", Messages: []model.Message{}})
	st.Save(&model.Conversation{ID: "conv-2", Messages: []model.Message{}})

	st.Delete("conv-1")

	conversations, current := st.Load()
	assert.NotContains(t, conversations, "conv-1")
	assert.Contains(t, conversations, "conv-2")
	assert.Equal(t, "conv-2", current)
}

func TestSettingsRoundTrip(t *testing.T) {
	st := newTestStore(t)

	// Defaults on absence.
	assert.Equal(t, &model.Settings{}, st.LoadSettings())

	settings := &model.Settings{
		Mode:           "elasticsearch",
		IndexName:      "app-logs",
		Temperature:    0.2,
		Debug:          true,
		AutoRegenerate: true,
	}
	st.SaveSettings(settings)
	assert.Equal(t, settings, st.LoadSettings())
}

func TestLoadMissingBlobYieldsEmptyMap(t *testing.T) {
	st := newTestStore(t)

	conversations, current := st.Load()
	assert.NotNil(t, conversations)
	assert.Empty(t, conversations)
	assert.Empty(t, current)
}
