package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/searchlens-ai/query-assistant/internal/model"
	"github.com/searchlens-ai/query-assistant/pkg/logger"
)

// regenerateFunc re-issues a query-generation request.
type regenerateFunc func(ctx context.Context, req *model.RegenerateRequest) (*model.RegenerateResult, error)

// applyFunc delivers a worker-produced message for a specific
// conversation. The receiver drops it when the id no longer matches
// the active conversation.
type applyFunc func(conversationID string, msg model.Message)

// Worker re-runs query generation in the background after a main
// answer finishes. It is stamped with the originating conversation id
// at launch so its completion is never attributed to a conversation
// the user has since switched away from.
type Worker struct {
	regenerate regenerateFunc
	apply      applyFunc
	logger     *logger.Logger
}

// NewWorker creates an auto-regenerate worker.
func NewWorker(regenerate regenerateFunc, apply applyFunc, log *logger.Logger) *Worker {
	return &Worker{
		regenerate: regenerate,
		apply:      apply,
		logger:     log,
	}
}

// Run executes one regeneration attempt for the given conversation.
// A failed attempt appends a system message carrying the attempt's
// query id for later on-demand retrieval; the main assistant message
// is never replaced or blocked.
func (w *Worker) Run(ctx context.Context, conversationID string, req *model.RegenerateRequest) {
	result, err := w.regenerate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled by a conversation switch; nothing to report.
			return
		}
		w.logger.Warn("auto-regenerate request failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return
	}

	if result.RawResults == nil || result.RawResults.Error == "" {
		w.logger.Debug("auto-regenerate succeeded",
			zap.String("conversation_id", conversationID),
			zap.String("query_id", result.QueryID),
		)
		return
	}

	w.apply(conversationID, model.Message{
		Role:    model.RoleSystem,
		Content: fmt.Sprintf("Automatic query regeneration failed: %s. The attempt details are available on request.", result.RawResults.Error),
		Meta: model.MessageMeta{
			QueryID: result.QueryID,
		},
	})
}
