package stream

import (
	"context"

	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"go.uber.org/zap"
)

const (
	FRAME_TYPING = "typing"
	FRAME_DEBUG  = "debug"
)

// Emitter receives live events of a conversation. Implementations must not block the caller.
type Emitter interface {
	Typing(ctx context.Context, conversationId string)
	Debug(ctx context.Context, conversationId string, events []model.DebugEvent)
}

type Frame struct {
	Type           string             `json:"type"`
	ConversationId string             `json:"conversationId"`
	Events         []model.DebugEvent `json:"events,omitempty"`
}

var _ Emitter = NoopEmitter{}

type NoopEmitter struct{}

func (NoopEmitter) Typing(context.Context, string)                     {}
func (NoopEmitter) Debug(context.Context, string, []model.DebugEvent) {}

var _ Emitter = LogEmitter{}

// LogEmitter writes events to the application log.
type LogEmitter struct{}

func (LogEmitter) Typing(ctx context.Context, conversationId string) {
	logger.Debug("typing", zap.String("conversationId", conversationId))
}

func (LogEmitter) Debug(ctx context.Context, conversationId string, events []model.DebugEvent) {
	for _, ev := range events {
		logger.Debug("flow trace", zap.String("conversationId", conversationId), zap.String("event", ev.Event), zap.Any("data", ev.Data))
	}
}
