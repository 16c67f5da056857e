package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/searchlens-ai/query-assistant/internal/middleware"
	"github.com/searchlens-ai/query-assistant/internal/model"
	"github.com/searchlens-ai/query-assistant/internal/store"
	"github.com/searchlens-ai/query-assistant/internal/stream"
	"github.com/searchlens-ai/query-assistant/pkg/logger"
)

// ModeIndexScoped is the chat mode in which answers are grounded in a
// selected index and auto-regeneration may run.
const ModeIndexScoped = "elasticsearch"

// ErrStreamInFlight is returned when a send starts while another is
// still streaming for the same conversation.
var ErrStreamInFlight = errors.New("a message is already streaming for this conversation")

// Result is the outcome of one send.
type Result struct {
	Status       Status
	Message      *model.Message
	ErrorMessage string
}

// SendOptions tunes one send.
type SendOptions struct {
	IncludeContext bool
}

// Session owns one active conversation: it runs sends end-to-end
// through the decoder and accumulator, persists after each mutation,
// and supervises the auto-regenerate worker.
type Session struct {
	client *Client
	store  *store.Store
	logger *logger.Logger

	autoRegenerate bool

	mu           sync.Mutex
	conv         *model.Conversation
	state        SessionState
	settings     *model.Settings
	cancel       CancellationController
	inFlight     bool
	workerCancel context.CancelFunc
}

// NewSession restores the current conversation from the store, or
// creates a fresh one when no persisted pointer resolves.
func NewSession(client *Client, st *store.Store, autoRegenerate bool, log *logger.Logger) *Session {
	conversations, current := st.Load()

	var conv *model.Conversation
	if current != "" {
		conv = conversations[current]
	}
	if conv == nil {
		conv = newConversation()
	}

	return &Session{
		client:         client,
		store:          st,
		logger:         log,
		autoRegenerate: autoRegenerate,
		conv:           conv,
		settings:       st.LoadSettings(),
	}
}

func newConversation() *model.Conversation {
	return &model.Conversation{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Messages: []model.Message{},
	}
}

// Conversation returns the active conversation. Not safe to mutate
// while a send is in flight.
func (s *Session) Conversation() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// State returns a snapshot of the ambient session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Settings returns the persisted settings blob.
func (s *Session) Settings() *model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings persists new settings.
func (s *Session) UpdateSettings(settings *model.Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	s.store.SaveSettings(settings)
}

// SendMessage sends a user message and consumes the response stream
// until a terminal state. At most one send may be in flight per
// conversation.
func (s *Session) SendMessage(ctx context.Context, content string, opts SendOptions) (*Result, error) {
	if err := middleware.ValidateMessageContent(content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrStreamInFlight
	}
	s.inFlight = true

	s.conv.Messages = append(s.conv.Messages, model.Message{
		Role:    model.RoleUser,
		Content: content,
		Meta:    model.MessageMeta{IncludeContext: opts.IncludeContext},
	})
	req := s.buildRequest()
	conv := s.conv
	s.store.Save(conv)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
		s.cancel.Finish()
	}()

	streamCtx := s.cancel.Begin(ctx)

	body, err := s.client.OpenStream(streamCtx, req)
	if err != nil {
		if streamCtx.Err() != nil {
			return &Result{Status: StatusCancelled, ErrorMessage: cancelledMessage}, nil
		}
		return nil, err
	}
	defer body.Close()

	acc := NewAccumulator(conv, &s.state)
	decoder := stream.NewDecoder(body, s.logger)

	for ev := range decoder.Events(streamCtx) {
		s.mu.Lock()
		acc.Apply(ev)
		s.persistLocked(conv)
		s.mu.Unlock()
	}

	switch decoder.State() {
	case stream.StateAborted:
		acc.Cancel()
	case stream.StateFailed:
		s.logger.Warn("chat stream failed",
			zap.String("conversation_id", conv.ID),
			zap.Error(decoder.Err()),
		)
		acc.Fail()
	}
	s.mu.Lock()
	s.persistLocked(conv)
	// Snapshot before the worker can append out of band.
	last := conv.LastMessage()
	s.mu.Unlock()

	if acc.Status() == StatusComplete {
		s.maybeRegenerate(conv, content)
	}

	return &Result{
		Status:       acc.Status(),
		Message:      last,
		ErrorMessage: userFacingMessage(acc),
	}, nil
}

// Cancel aborts the in-flight send, if any. The partial assistant
// content accumulated so far is kept.
func (s *Session) Cancel() {
	s.cancel.Cancel()
}

// Clear abandons the active conversation and starts a fresh one with a
// new id and empty messages. A running worker for the old conversation
// is cancelled.
func (s *Session) Clear() {
	s.cancel.Cancel()

	s.mu.Lock()
	if s.workerCancel != nil {
		s.workerCancel()
		s.workerCancel = nil
	}
	s.conv = newConversation()
	s.state = SessionState{}
	s.store.Save(s.conv)
	s.mu.Unlock()
}

// SwitchTo activates a persisted conversation by id.
func (s *Session) SwitchTo(id string) error {
	conversations, _ := s.store.Load()
	conv, exists := conversations[id]
	if !exists {
		return errors.New("conversation not found")
	}

	s.cancel.Cancel()

	s.mu.Lock()
	if s.workerCancel != nil {
		s.workerCancel()
		s.workerCancel = nil
	}
	s.conv = conv
	s.state = SessionState{}
	s.store.Save(conv)
	s.mu.Unlock()
	return nil
}

// Delete removes a conversation; deleting the active one starts a
// fresh conversation.
func (s *Session) Delete(id string) {
	s.store.Delete(id)

	s.mu.Lock()
	active := s.conv.ID == id
	s.mu.Unlock()
	if active {
		s.Clear()
	}
}

func (s *Session) buildRequest() *model.ChatRequest {
	mode := s.conv.Mode
	if mode == "" {
		mode = s.settings.Mode
	}
	index := s.conv.Index
	if index == "" {
		index = s.settings.IndexName
	}
	return &model.ChatRequest{
		Messages:       s.conv.Messages,
		Mode:           mode,
		Stream:         true,
		ConversationID: s.conv.ID,
		Temperature:    s.settings.Temperature,
		Debug:          s.settings.Debug,
		IndexName:      index,
	}
}

// maybeRegenerate launches the auto-regenerate worker after a
// completed answer, only when enabled and in index-scoped mode. The
// worker closure is stamped with the conversation id at launch.
func (s *Session) maybeRegenerate(conv *model.Conversation, question string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.autoRegenerate || conv.Mode != ModeIndexScoped || conv.Index == "" {
		return
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	if s.workerCancel != nil {
		s.workerCancel()
	}
	s.workerCancel = cancel

	worker := NewWorker(s.client.Regenerate, s.applyWorkerMessage, s.logger)
	go worker.Run(workerCtx, conv.ID, &model.RegenerateRequest{
		ConversationID: conv.ID,
		IndexName:      conv.Index,
		Question:       question,
	})
}

// applyWorkerMessage appends a worker-produced message, unless the
// active conversation has changed since the worker launched.
func (s *Session) applyWorkerMessage(conversationID string, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv.ID != conversationID {
		s.logger.Debug("discarding worker result for inactive conversation",
			zap.String("conversation_id", conversationID),
		)
		return
	}
	s.conv.Messages = append(s.conv.Messages, msg)
	s.store.Save(s.conv)
}

// persistLocked saves conv while s.mu is held, skipping when it is no
// longer the active conversation so an abandoned send cannot move the
// persisted current pointer back to it.
func (s *Session) persistLocked(conv *model.Conversation) {
	if s.conv != conv {
		return
	}
	s.store.Save(conv)
}

const (
	cancelledMessage = "Request cancelled."
	failedMessage    = "Connection to the assistant was lost."
)

// userFacingMessage maps a terminal status to short, non-leaking
// wording. Cancellation is user-initiated and worded distinctly from
// network failure.
func userFacingMessage(acc *Accumulator) string {
	switch acc.Status() {
	case StatusCancelled:
		return cancelledMessage
	case StatusFailed:
		if msg := acc.ErrorMessage(); msg != "" {
			return msg
		}
		return failedMessage
	default:
		return ""
	}
}
