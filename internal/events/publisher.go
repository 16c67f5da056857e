package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

const (
	// StreamName is the name of the chat audit stream.
	StreamName = "CHAT_AUDIT"

	// SubjectPrefix is the prefix for all audit subjects.
	SubjectPrefix = "qa.chat"
)

// ChatEvent records the outcome of one proxied chat request.
type ChatEvent struct {
	Route      string    `json:"route"`
	Status     string    `json:"status"`
	HTTPStatus int       `json:"http_status"`
	Bytes      int64     `json:"bytes"`
	DurationMs int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher publishes chat audit events to JetStream. A nil Publisher
// is valid and drops events, so callers never branch on configuration.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher over an established client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// EnsureStream ensures the audit stream exists.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	if p == nil {
		return nil
	}
	js := p.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Chat request lifecycle audit events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// ChatSubject returns the subject for a chat event.
func ChatSubject(route, status string) string {
	route = strings.Trim(strings.ReplaceAll(route, "/", "."), ".")
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, route, status)
}

// ChatRequest publishes a chat lifecycle event. Failures are logged,
// never surfaced into the request path.
func (p *Publisher) ChatRequest(ctx context.Context, ev ChatEvent) {
	if p == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.client.logger.Warn("failed to marshal audit event", zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if _, err := p.client.JetStream().Publish(pubCtx, ChatSubject(ev.Route, ev.Status), data); err != nil {
		p.client.logger.Warn("failed to publish audit event",
			zap.String("route", ev.Route),
			zap.Error(err),
		)
	}
}
