package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlens-ai/query-assistant/internal/model"
	"github.com/searchlens-ai/query-assistant/pkg/logger"
)

func TestWorkerFailureAppendsSystemMessage(t *testing.T) {
	var applied []model.Message
	var appliedFor string

	regenerate := func(ctx context.Context, req *model.RegenerateRequest) (*model.RegenerateResult, error) {
		return &model.RegenerateResult{
			QueryID: "q1",
			RawResults: &model.RegenerateResults{
				Error: "execution_failed",
			},
		}, nil
	}
	apply := func(conversationID string, msg model.Message) {
		appliedFor = conversationID
		applied = append(applied, msg)
	}

	worker := NewWorker(regenerate, apply, logger.Nop())
	worker.Run(context.Background(), "conv-1", &model.RegenerateRequest{
		ConversationID: "conv-1",
		IndexName:      "app-logs",
		Question:       "show me the errors",
	})

	require.Len(t, applied, 1)
	assert.Equal(t, "conv-1", appliedFor)
	assert.Equal(t, model.RoleSystem, applied[0].Role)
	assert.Contains(t, applied[0].Content, "execution_failed")
	assert.Equal(t, "q1", applied[0].Meta.QueryID)
}

func TestWorkerSuccessAppendsNothing(t *testing.T) {
	regenerate := func(ctx context.Context, req *model.RegenerateRequest) (*model.RegenerateResult, error) {
		return &model.RegenerateResult{
			QueryID:    "q2",
			RawResults: &model.RegenerateResults{},
		}, nil
	}
	apply := func(conversationID string, msg model.Message) {
		t.Errorf("unexpected apply for %s", conversationID)
	}

	worker := NewWorker(regenerate, apply, logger.Nop())
	worker.Run(context.Background(), "conv-1", &model.RegenerateRequest{ConversationID: "conv-1"})
}

func TestWorkerRequestErrorAppendsNothing(t *testing.T) {
	regenerate := func(ctx context.Context, req *model.RegenerateRequest) (*model.RegenerateResult, error) {
		return nil, errors.New("upstream unavailable")
	}
	apply := func(conversationID string, msg model.Message) {
		t.Errorf("unexpected apply for %s", conversationID)
	}

	worker := NewWorker(regenerate, apply, logger.Nop())
	worker.Run(context.Background(), "conv-1", &model.RegenerateRequest{ConversationID: "conv-1"})
}

func TestWorkerCancelledContextIsSilent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	regenerate := func(ctx context.Context, req *model.RegenerateRequest) (*model.RegenerateResult, error) {
		return nil, ctx.Err()
	}
	apply := func(conversationID string, msg model.Message) {
		t.Errorf("unexpected apply for %s", conversationID)
	}

	worker := NewWorker(regenerate, apply, logger.Nop())
	worker.Run(ctx, "conv-1", &model.RegenerateRequest{ConversationID: "conv-1"})
}
