package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/metadata"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/node"
	"github.com/mohitkumar/agentflow/persistence"
	"go.uber.org/zap"
)

var _ node.Session = new(SessionContext)

var ErrNoSession = errors.New("conversation has no session")

// SessionContext is the read/write gateway to the execution state of one conversation.
// The session is read once on construction and written back by SyncWithDB only when dirty.
type SessionContext struct {
	conversation  *model.Conversation
	sessions      persistence.SessionStorage
	conversations persistence.ConversationStorage
	flows         metadata.MetadataService

	maxRedirectRepeats int

	session      *model.Session
	status       model.SessionStatus
	activeFlowId string
	activeFlow   *node.Flow
	data         model.SessionData
	dirty        bool

	// entered counts how often each flow was activated in this context only.
	entered map[string]int
}

func NewSessionContext(ctx context.Context, conversation *model.Conversation, sessions persistence.SessionStorage,
	flows metadata.MetadataService, conversations persistence.ConversationStorage, limits config.ExecutorConfig) (*SessionContext, error) {
	limits = limits.WithDefaults()
	s := &SessionContext{
		conversation:       conversation,
		sessions:           sessions,
		conversations:      conversations,
		flows:              flows,
		maxRedirectRepeats: limits.MaxRedirectRepeats,
		status:             model.SESSION_IDLE,
		data:               model.NewSessionData(),
		entered:            make(map[string]int),
	}
	session, err := sessions.GetSession(ctx, conversation.Id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return s, nil
		}
		return nil, err
	}
	session.Data.Normalize()
	s.session = session
	s.status = session.Status
	s.activeFlowId = session.ActiveFlowId
	s.data = session.Data.Clone()
	if len(s.activeFlowId) > 0 {
		flow, err := flows.GetFlow(ctx, s.activeFlowId)
		if err != nil {
			logger.Warn("active flow not available", zap.String("conversationId", conversation.Id), zap.String("flowId", s.activeFlowId), zap.Error(err))
		} else {
			s.activeFlow = flow
		}
	}
	return s, nil
}

func (s *SessionContext) HasSession() bool {
	return s.session != nil
}

func (s *SessionContext) Conversation() *model.Conversation {
	return s.conversation
}

// Snapshot returns the in-memory state as a session record.
func (s *SessionContext) Snapshot() model.Session {
	out := model.Session{
		ConversationId: s.conversation.Id,
		Status:         s.status,
		ActiveFlowId:   s.activeFlowId,
		Data:           s.data.Clone(),
	}
	if s.session != nil {
		out.Id = s.session.Id
		out.CreatedAt = s.session.CreatedAt
		out.UpdatedAt = s.session.UpdatedAt
	}
	return out
}

// GetAllNodes returns the nodes of the active flow, empty when no flow is active.
func (s *SessionContext) GetAllNodes() []node.Node {
	if s.activeFlow == nil {
		return []node.Node{}
	}
	return s.activeFlow.Graph.Nodes()
}

// Graph of the active flow, nil when no flow is active.
func (s *SessionContext) Graph() *node.Graph {
	if s.activeFlow == nil {
		return nil
	}
	return s.activeFlow.Graph
}

func (s *SessionContext) ActiveFlowId() string {
	return s.activeFlowId
}

func (s *SessionContext) GetStatus() model.SessionStatus {
	return s.status
}

func (s *SessionContext) SetStatus(status model.SessionStatus) {
	if s.status == status {
		return
	}
	s.status = status
	s.dirty = true
}

func (s *SessionContext) GetCurrentNodeId() string {
	return s.data.CurrentNodeId
}

// SetCurrentNodeId moves the cursor, "" clears it.
func (s *SessionContext) SetCurrentNodeId(nodeId string) {
	if s.data.CurrentNodeId == nodeId {
		return
	}
	s.data.CurrentNodeId = nodeId
	s.dirty = true
}

// UpdateData shallow merges partial into the custom data of the session.
func (s *SessionContext) UpdateData(partial map[string]any) {
	if len(partial) == 0 {
		return
	}
	s.data.Custom = persistence.MergeAttributes(s.data.Custom, partial)
	s.dirty = true
}

func (s *SessionContext) Data() map[string]any {
	return s.data.Custom
}

func (s *SessionContext) NodeData(nodeId string) map[string]any {
	return s.data.NodeData[nodeId]
}

func (s *SessionContext) UpdateNodeData(nodeId string, partial map[string]any) {
	if len(partial) == 0 {
		return
	}
	s.data.NodeData[nodeId] = persistence.MergeAttributes(s.data.NodeData[nodeId], partial)
	s.dirty = true
}

func (s *SessionContext) ClearNodeData(nodeId string) {
	if _, ok := s.data.NodeData[nodeId]; !ok {
		return
	}
	delete(s.data.NodeData, nodeId)
	s.dirty = true
}

// SetActiveFlow activates flowId and returns its entry node id.
// It returns false without touching any state when the flow is already running,
// cannot be loaded, has no single entry node, or the current flow and flowId
// together were already activated maxRedirectRepeats times in this context.
// A flow loaded with the session does not count as activated.
func (s *SessionContext) SetActiveFlow(ctx context.Context, flowId string) (string, bool) {
	if flowId == s.activeFlowId && s.activeFlow != nil && s.status != model.SESSION_IDLE {
		logger.Debug("flow already active", zap.String("conversationId", s.conversation.Id), zap.String("flowId", flowId))
		return "", false
	}
	flow, err := s.flows.GetFlow(ctx, flowId)
	if err != nil {
		logger.Warn("can not activate flow", zap.String("conversationId", s.conversation.Id), zap.String("flowId", flowId), zap.Error(err))
		return "", false
	}
	entry, err := flow.EntryNodeId()
	if err != nil {
		logger.Warn("can not resolve entry node", zap.String("conversationId", s.conversation.Id), zap.String("flowId", flowId), zap.Error(err))
		return "", false
	}
	activations := s.entered[flowId]
	if s.activeFlowId != flowId {
		activations += s.entered[s.activeFlowId]
	}
	if activations >= s.maxRedirectRepeats {
		logger.Warn("flow redirect loop detected", zap.String("conversationId", s.conversation.Id), zap.String("from", s.activeFlowId), zap.String("to", flowId))
		return "", false
	}

	data := s.data.Clone()
	data.CurrentNodeId = entry
	data.NodeData = make(map[string]map[string]any)
	if s.session == nil {
		session := &model.Session{
			Id:             uuid.NewString(),
			ConversationId: s.conversation.Id,
			Status:         model.SESSION_ACTIVE,
			ActiveFlowId:   flowId,
			Data:           data,
		}
		if err := s.sessions.CreateSession(ctx, session); err != nil {
			logger.Error("error creating session", zap.String("conversationId", s.conversation.Id), zap.Error(err))
			return "", false
		}
		s.session = session
		s.status = model.SESSION_ACTIVE
		s.activeFlowId = flowId
		s.activeFlow = flow
		s.data = data.Clone()
		s.entered[flowId]++
		return entry, true
	}

	if err := s.flows.IncrementActivationCount(ctx, flowId); err != nil {
		logger.Error("error incrementing activation count", zap.String("flowId", flowId), zap.Error(err))
	}
	s.entered[flowId]++
	s.activeFlowId = flowId
	s.activeFlow = flow
	s.status = model.SESSION_ACTIVE
	s.data = data
	s.dirty = true
	return entry, true
}

func (s *SessionContext) AttachToolResponse(ctx context.Context, nodeId string, toolId string, response map[string]any, failed bool) error {
	if s.session == nil {
		return ErrNoSession
	}
	return s.sessions.AttachToolResponse(ctx, model.ToolResponse{
		SessionId: s.session.Id,
		NodeId:    nodeId,
		ToolId:    toolId,
		Response:  response,
		Failed:    failed,
		CreatedAt: time.Now().UTC(),
	})
}

// GetToolResponse returns the latest response of toolId produced by one of ancestorNodeIds, nil when there is none.
func (s *SessionContext) GetToolResponse(ctx context.Context, toolId string, ancestorNodeIds []string) (*model.ToolResponse, error) {
	if s.session == nil || len(ancestorNodeIds) == 0 {
		return nil, nil
	}
	res, err := s.sessions.FindToolResponse(ctx, s.session.Id, toolId, ancestorNodeIds)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

// UpdateAttributes applies attributes grouped by the entity they belong to.
// With checkPermission an attribute is only written when a writable definition exists for it.
func (s *SessionContext) UpdateAttributes(ctx context.Context, attributes []model.Attribute, checkPermission bool) error {
	groups := make(map[model.AttributeType]map[string]any)
	writable := make(map[model.AttributeType]map[string]bool)
	for _, attr := range attributes {
		if !attr.Type.Valid() {
			logger.Warn("skipping attribute with unknown type", zap.String("name", attr.Name), zap.String("type", string(attr.Type)))
			continue
		}
		if checkPermission {
			allowed, ok := writable[attr.Type]
			if !ok {
				var err error
				allowed, err = s.writableAttributes(ctx, attr.Type)
				if err != nil {
					return err
				}
				writable[attr.Type] = allowed
			}
			if !allowed[attr.Name] {
				logger.Warn("skipping attribute without write permission", zap.String("name", attr.Name), zap.String("type", string(attr.Type)))
				continue
			}
		}
		if groups[attr.Type] == nil {
			groups[attr.Type] = make(map[string]any)
		}
		groups[attr.Type][attr.Name] = attr.Value
	}
	if values, ok := groups[model.ATTRIBUTE_USER]; ok {
		if len(s.conversation.UserId) == 0 {
			logger.Warn("conversation has no user, skipping user attributes", zap.String("conversationId", s.conversation.Id))
		} else if err := s.conversations.UpdateUserAttributes(ctx, s.conversation.UserId, values); err != nil {
			return fmt.Errorf("update user attributes: %w", err)
		}
	}
	if values, ok := groups[model.ATTRIBUTE_CONVERSATION]; ok {
		if err := s.conversations.UpdateConversationAttributes(ctx, s.conversation.Id, values); err != nil {
			return fmt.Errorf("update conversation attributes: %w", err)
		}
		s.conversation.Attributes = persistence.MergeAttributes(s.conversation.Attributes, values)
	}
	if values, ok := groups[model.ATTRIBUTE_SESSION]; ok {
		s.UpdateData(values)
	}
	return nil
}

func (s *SessionContext) writableAttributes(ctx context.Context, attrType model.AttributeType) (map[string]bool, error) {
	defs, err := s.flows.GetAttributeDefinitions(ctx, attrType)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(defs))
	for _, def := range defs {
		out[def.Name] = def.Permission == model.PERMISSION_WRITABLE
	}
	return out, nil
}

// SyncWithDB writes the session in one update when something changed since the last write.
func (s *SessionContext) SyncWithDB(ctx context.Context) error {
	if s.session == nil || !s.dirty {
		return nil
	}
	s.session.Status = s.status
	s.session.ActiveFlowId = s.activeFlowId
	s.session.Data = s.data.Clone()
	if err := s.sessions.UpdateSession(ctx, s.session); err != nil {
		return err
	}
	s.dirty = false
	return nil
}
