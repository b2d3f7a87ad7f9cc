package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohitkumar/agentflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

var ErrNotFound = errors.New("record not found")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

type FlowStorage interface {
	SaveFlow(ctx context.Context, flow model.FlowDefinition) error
	DeleteFlow(ctx context.Context, id string) error
	GetFlow(ctx context.Context, id string) (*model.FlowDefinition, error)
	IncrementActivationCount(ctx context.Context, id string) (int64, error)
}

// SessionStorage keeps one session per conversation.
type SessionStorage interface {
	GetSession(ctx context.Context, conversationId string) (*model.Session, error)
	CreateSession(ctx context.Context, session *model.Session) error
	// UpdateSession writes status, active flow and context of an existing session in one operation.
	UpdateSession(ctx context.Context, session *model.Session) error
	AttachToolResponse(ctx context.Context, response model.ToolResponse) error
	// FindToolResponse returns the latest response of toolId produced by one of nodeIds.
	FindToolResponse(ctx context.Context, sessionId string, toolId string, nodeIds []string) (*model.ToolResponse, error)
}

type ConversationStorage interface {
	CreateConversation(ctx context.Context, conversation *model.Conversation) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	AssignConversation(ctx context.Context, id string, assignee model.Assignee) error
	UpdateConversationAttributes(ctx context.Context, id string, attributes map[string]any) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateUserAttributes(ctx context.Context, id string, attributes map[string]any) error
	AppendItem(ctx context.Context, item *model.ConversationItem) error
	// ListItems returns the last limit items of a conversation, oldest first. limit <= 0 returns all.
	ListItems(ctx context.Context, conversationId string, limit int) ([]model.ConversationItem, error)
}

type AttributeStorage interface {
	SaveAttributeDefinition(ctx context.Context, def model.AttributeDefinition) error
	GetAttributeDefinitions(ctx context.Context, attrType model.AttributeType) ([]model.AttributeDefinition, error)
}

type Storage interface {
	FlowStorage
	SessionStorage
	ConversationStorage
	AttributeStorage
	Close() error
}

// MergeAttributes shallow merges update into current, allocating current when nil.
func MergeAttributes(current map[string]any, update map[string]any) map[string]any {
	if current == nil {
		current = make(map[string]any, len(update))
	}
	for k, v := range update {
		current[k] = v
	}
	return current
}

// LatestToolResponse picks the most recent response of toolId produced by one of nodeIds.
func LatestToolResponse(responses []model.ToolResponse, toolId string, nodeIds []string) (*model.ToolResponse, error) {
	allowed := make(map[string]struct{}, len(nodeIds))
	for _, id := range nodeIds {
		allowed[id] = struct{}{}
	}
	for i := len(responses) - 1; i >= 0; i-- {
		res := responses[i]
		if res.ToolId != toolId {
			continue
		}
		if _, ok := allowed[res.NodeId]; !ok {
			continue
		}
		return &res, nil
	}
	return nil, ErrNotFound
}
