package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/flow"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/metadata"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/stream"
	"github.com/mohitkumar/agentflow/tool"
	"go.uber.org/zap"
)

// messageWindow is how many conversation items a turn looks at: the latest user message and the one before it.
const messageWindow = 2

var (
	ErrFlowNotActivated = errors.New("flow could not be activated")
	ErrInvalidAssignee  = errors.New("invalid assignee")
	ErrEmptyMessage     = errors.New("message body and value can not both be empty")
)

type ConversationService struct {
	storage  persistence.Storage
	metadata metadata.MetadataService
	emitter  stream.Emitter
	tools    *tool.Registry
	conf     config.ExecutorConfig
}

func NewConversationService(storage persistence.Storage, metadataService metadata.MetadataService, emitter stream.Emitter,
	tools *tool.Registry, conf config.ExecutorConfig) *ConversationService {
	if emitter == nil {
		emitter = stream.NoopEmitter{}
	}
	return &ConversationService{
		storage:  storage,
		metadata: metadataService,
		emitter:  emitter,
		tools:    tools,
		conf:     conf.WithDefaults(),
	}
}

func (s *ConversationService) CreateConversation(ctx context.Context, req model.CreateConversationRequest) (*model.Conversation, error) {
	conversation := &model.Conversation{
		Id:         uuid.NewString(),
		UserId:     req.UserId,
		AssignedTo: model.ASSIGNED_TO_BOT,
		Attributes: req.Attributes,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.storage.CreateConversation(ctx, conversation); err != nil {
		return nil, err
	}
	logger.Info("conversation created", zap.String("conversationId", conversation.Id), zap.String("userId", req.UserId))
	return conversation, nil
}

// HandleMessage stores an inbound user item and runs a turn of the active flow.
func (s *ConversationService) HandleMessage(ctx context.Context, conversationId string, req model.MessageRequest) (*model.ExecutionResult, error) {
	if len(req.Body) == 0 && len(req.Value) == 0 {
		return nil, ErrEmptyMessage
	}
	conversation, err := s.storage.GetConversation(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	itemType := req.Type
	if itemType == "" {
		itemType = model.ITEM_MESSAGE
	}
	item := &model.ConversationItem{
		Id:             uuid.NewString(),
		ConversationId: conversationId,
		Author:         model.AUTHOR_USER,
		Type:           itemType,
		Body:           req.Body,
		Value:          req.Value,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.storage.AppendItem(ctx, item); err != nil {
		return nil, err
	}
	return s.run(ctx, conversation, "")
}

// ActivateFlow starts flowId for the conversation and runs it until it waits or ends.
func (s *ConversationService) ActivateFlow(ctx context.Context, conversationId string, flowId string) (*model.ExecutionResult, error) {
	conversation, err := s.storage.GetConversation(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	sessionContext, err := s.newSessionContext(ctx, conversation)
	if err != nil {
		return nil, err
	}
	if _, ok := sessionContext.SetActiveFlow(ctx, flowId); !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotActivated, flowId)
	}
	return s.execute(ctx, conversation, sessionContext, "")
}

// AssignConversation changes the assignee. Handing over to an agent runs a turn so the session goes idle.
func (s *ConversationService) AssignConversation(ctx context.Context, conversationId string, assignee model.Assignee) (*model.ExecutionResult, error) {
	switch assignee {
	case model.ASSIGNED_TO_NONE, model.ASSIGNED_TO_BOT, model.ASSIGNED_TO_AGENT:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAssignee, assignee)
	}
	if err := s.storage.AssignConversation(ctx, conversationId, assignee); err != nil {
		return nil, err
	}
	conversation, err := s.storage.GetConversation(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	if !conversation.AssignedToAgent() {
		return &model.ExecutionResult{ConversationId: conversationId, ExecutedNodes: []string{}, Items: []model.ConversationItem{}}, nil
	}
	return s.run(ctx, conversation, "")
}

func (s *ConversationService) GetConversation(ctx context.Context, conversationId string) (*model.Conversation, error) {
	return s.storage.GetConversation(ctx, conversationId)
}

func (s *ConversationService) GetSession(ctx context.Context, conversationId string) (*model.Session, error) {
	return s.storage.GetSession(ctx, conversationId)
}

func (s *ConversationService) ListItems(ctx context.Context, conversationId string, limit int) ([]model.ConversationItem, error) {
	if _, err := s.storage.GetConversation(ctx, conversationId); err != nil {
		return nil, err
	}
	return s.storage.ListItems(ctx, conversationId, limit)
}

func (s *ConversationService) newSessionContext(ctx context.Context, conversation *model.Conversation) (*flow.SessionContext, error) {
	return flow.NewSessionContext(ctx, conversation, s.storage, s.metadata, s.storage, s.conf)
}

func (s *ConversationService) run(ctx context.Context, conversation *model.Conversation, targetNodeId string) (*model.ExecutionResult, error) {
	sessionContext, err := s.newSessionContext(ctx, conversation)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, conversation, sessionContext, targetNodeId)
}

func (s *ConversationService) execute(ctx context.Context, conversation *model.Conversation, sessionContext *flow.SessionContext, targetNodeId string) (*model.ExecutionResult, error) {
	items, err := s.storage.ListItems(ctx, conversation.Id, messageWindow)
	if err != nil {
		return nil, err
	}
	executor := flow.NewExecutor(sessionContext, conversation, s.emitter,
		flow.WithMaxNodeVisits(s.conf.MaxNodeVisits),
		flow.WithTools(s.tools),
	)
	if _, err := executor.UsingMessages(items).Execute(ctx, targetNodeId); err != nil {
		logger.Error("error executing flow", zap.String("conversationId", conversation.Id), zap.Error(err))
		return nil, err
	}
	result := &model.ExecutionResult{
		ConversationId: conversation.Id,
		Status:         sessionContext.GetStatus(),
		CurrentNodeId:  sessionContext.GetCurrentNodeId(),
		ActiveFlowId:   sessionContext.ActiveFlowId(),
		ExecutedAny:    executor.ExecutedAnyNodes(),
		ExecutedNodes:  executor.ExecutedNodes(),
		Items:          executor.Items(),
	}
	if s.conf.DebugTrace {
		result.Trace = executor.Trace()
	}
	return result, nil
}
