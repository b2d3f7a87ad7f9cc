package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/agentflow/analytics"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/node"
	"github.com/mohitkumar/agentflow/stream"
	"github.com/mohitkumar/agentflow/tool"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const (
	EVENT_EXECUTE                  = "execute"
	EVENT_GO_TO_NODE               = "goToNode"
	EVENT_GO_TO_NODE_REACHED_END   = "goToNodeReachedEnd"
	EVENT_MAX_NODE_TRANSITIONS     = "maximumNodeTransitionsReached"
	EVENT_GO_TO_NODE_INFINITE_LOOP = "goToNodeInfiniteLoop"
	EVENT_SET_SESSION_STATUS       = "setSessionStatus"
)

// MessageWriter persists the bot items written by nodes.
type MessageWriter interface {
	AppendItem(ctx context.Context, item *model.ConversationItem) error
}

type Option func(*Executor)

// WithStopNodeId makes the traversal stop before visiting nodeId.
func WithStopNodeId(nodeId string) Option {
	return func(e *Executor) {
		e.stopNodeId = nodeId
	}
}

func WithMaxNodeVisits(max int) Option {
	return func(e *Executor) {
		if max > 0 {
			e.maxNodeVisits = max
		}
	}
}

func WithTools(tools *tool.Registry) Option {
	return func(e *Executor) {
		e.tools = tools
	}
}

func WithMessageWriter(writer MessageWriter) Option {
	return func(e *Executor) {
		e.writer = writer
	}
}

var _ node.Runtime = new(Executor)

// Executor walks the active flow of a conversation for one turn.
// It keeps no state between turns other than what the SessionContext persists.
type Executor struct {
	session      *SessionContext
	conversation *model.Conversation
	emitter      stream.Emitter
	tools        *tool.Registry
	writer       MessageWriter

	stopNodeId    string
	maxNodeVisits int

	latestUserMessage *model.ConversationItem
	previousMessage   *model.ConversationItem

	visited  map[string]struct{}
	visits   int
	stopped  bool
	executed []string
	items    []model.ConversationItem
	trace    []model.DebugEvent
}

func NewExecutor(session *SessionContext, conversation *model.Conversation, emitter stream.Emitter, opts ...Option) *Executor {
	if emitter == nil {
		emitter = stream.NoopEmitter{}
	}
	e := &Executor{
		session:       session,
		conversation:  conversation,
		emitter:       emitter,
		writer:        session.conversations,
		maxNodeVisits: config.DEFAULT_MAX_NODE_VISITS,
		visited:       make(map[string]struct{}),
		executed:      []string{},
		items:         []model.ConversationItem{},
		trace:         []model.DebugEvent{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UsingMessages seeds the latest user message and the message before it from the conversation items.
func (e *Executor) UsingMessages(items []model.ConversationItem) *Executor {
	e.latestUserMessage = nil
	e.previousMessage = nil
	if n := len(items); n > 0 {
		latest := items[n-1]
		e.latestUserMessage = &latest
		if n > 1 {
			previous := items[n-2]
			e.previousMessage = &previous
		}
	}
	return e
}

func (e *Executor) SetActiveFlow(ctx context.Context, flowId string) *Executor {
	e.session.SetActiveFlow(ctx, flowId)
	return e
}

// Execute runs one traversal starting at targetNodeId, or at the current node of the session when empty.
func (e *Executor) Execute(ctx context.Context, targetNodeId string) (*Executor, error) {
	startNodeId := targetNodeId
	if startNodeId == "" {
		startNodeId = e.session.GetCurrentNodeId()
	}
	e.log(EVENT_EXECUTE, map[string]any{
		"startNodeId":     startNodeId,
		"targetNodeId":    targetNodeId,
		"status":          string(e.session.GetStatus()),
		"activeFlowId":    e.session.ActiveFlowId(),
		"assignedToAgent": e.conversation.AssignedToAgent(),
	})

	var handlerErr error
	if !e.conversation.AssignedToAgent() {
		e.emitter.Typing(ctx, e.conversation.Id)
		if e.session.GetStatus() == model.SESSION_WAITING_FOR_USER_INPUT {
			e.session.SetStatus(model.SESSION_ACTIVE)
		}
		handlerErr = e.GoToNode(ctx, startNodeId)
	}

	if e.conversation.AssignedToAgent() || e.session.GetStatus() != model.SESSION_WAITING_FOR_USER_INPUT {
		e.session.SetCurrentNodeId("")
		e.SetSessionStatus(model.SESSION_IDLE)
	}
	analytics.RecordTraversal(e.conversation.Id, e.session.ActiveFlowId(), e.visits, string(e.session.GetStatus()), e.stopReason(handlerErr))

	// the turn already happened, persist it even when the caller went away
	syncErr := e.session.SyncWithDB(context.WithoutCancel(ctx))
	e.emitter.Debug(ctx, e.conversation.Id, e.Trace())
	if syncErr != nil {
		return e, syncErr
	}
	if handlerErr != nil {
		return e, handlerErr
	}
	return e, nil
}

func (e *Executor) stopReason(err error) string {
	switch {
	case err != nil:
		return "error"
	case e.conversation.AssignedToAgent():
		return "handoff"
	case e.session.GetStatus() == model.SESSION_WAITING_FOR_USER_INPUT:
		return "waiting"
	default:
		return "end"
	}
}

// GoToNode visits nodeId and lets its handler pick the next node.
// Malformed graphs end the traversal without an error.
func (e *Executor) GoToNode(ctx context.Context, nodeId string) error {
	if nodeId == "" || nodeId == e.stopNodeId || e.stopped {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.visits >= e.maxNodeVisits {
		e.log(EVENT_MAX_NODE_TRANSITIONS, map[string]any{"nodeId": nodeId, "visits": e.visits})
		logger.Warn("maximum node transitions reached", zap.String("conversationId", e.conversation.Id), zap.Int("visits", e.visits))
		e.stopped = true
		return nil
	}
	n, ok := e.Graph().Get(nodeId)
	if !ok {
		e.log(EVENT_GO_TO_NODE_REACHED_END, map[string]any{"nodeId": nodeId})
		return nil
	}
	visitKey := e.session.ActiveFlowId() + "/" + nodeId
	if _, seen := e.visited[visitKey]; seen && n.Type() == node.NODE_GO_TO_NODE {
		e.log(EVENT_GO_TO_NODE_INFINITE_LOOP, map[string]any{"nodeId": nodeId})
		return nil
	}
	handler, err := node.NewHandler(n, e)
	if err != nil {
		e.log(EVENT_GO_TO_NODE_REACHED_END, map[string]any{"nodeId": nodeId, "error": err.Error()})
		return nil
	}
	e.log(EVENT_GO_TO_NODE, map[string]any{"nodeId": nodeId, "type": string(n.Type())})
	e.visited[visitKey] = struct{}{}
	e.visits++
	e.session.SetCurrentNodeId(nodeId)

	// nested visits happen inside Execute, keep executed nodes in visit order
	slot := len(e.executed)
	visible, err := handler.Execute(ctx)
	if visible {
		e.executed = slices.Insert(e.executed, slot, nodeId)
	}
	analytics.RecordNodeExecuted(e.conversation.Id, e.session.ActiveFlowId(), nodeId, string(n.Type()), visible)
	if err != nil {
		return fmt.Errorf("nodeId=%s: %w", nodeId, err)
	}
	return nil
}

func (e *Executor) ExecutedAnyNodes() bool {
	return len(e.executed) > 0
}

func (e *Executor) ExecutedNodes() []string {
	return e.executed
}

// Items returns the bot items written during this traversal.
func (e *Executor) Items() []model.ConversationItem {
	return e.items
}

func (e *Executor) WaitForUserInput() {
	e.SetSessionStatus(model.SESSION_WAITING_FOR_USER_INPUT)
}

func (e *Executor) SetSessionStatus(status model.SessionStatus) {
	e.log(EVENT_SET_SESSION_STATUS, map[string]any{"from": string(e.session.GetStatus()), "to": string(status)})
	e.session.SetStatus(status)
}

// Trace returns the debug events of this executor in the order they happened.
func (e *Executor) Trace() []model.DebugEvent {
	out := make([]model.DebugEvent, len(e.trace))
	copy(out, e.trace)
	return out
}

func (e *Executor) LatestUserMessage() *model.ConversationItem {
	return e.latestUserMessage
}

func (e *Executor) PreviousMessage() *model.ConversationItem {
	return e.previousMessage
}

func (e *Executor) Session() node.Session {
	return e.session
}

func (e *Executor) SessionContext() *SessionContext {
	return e.session
}

func (e *Executor) Graph() *node.Graph {
	return e.session.Graph()
}

// Data is the view {$.path} templates and condition expressions resolve against.
func (e *Executor) Data() map[string]any {
	data := map[string]any{
		"custom": e.session.Data(),
		"conversation": map[string]any{
			"id":         e.conversation.Id,
			"assignedTo": string(e.conversation.AssignedTo),
			"attributes": e.conversation.Attributes,
		},
		"user": map[string]any{
			"id": e.conversation.UserId,
		},
		"session": map[string]any{
			"status":       string(e.session.GetStatus()),
			"activeFlowId": e.session.ActiveFlowId(),
		},
	}
	if msg := e.latestUserMessage; msg != nil {
		data["message"] = map[string]any{
			"body":  msg.Body,
			"value": msg.Value,
			"type":  string(msg.Type),
		}
	}
	return data
}

func (e *Executor) WriteMessage(ctx context.Context, nodeId string, body string, buttons []model.Button) error {
	item := model.ConversationItem{
		Id:             uuid.NewString(),
		ConversationId: e.conversation.Id,
		Author:         model.AUTHOR_BOT,
		Type:           model.ITEM_MESSAGE,
		Body:           body,
		Buttons:        buttons,
		NodeId:         nodeId,
		CreatedAt:      time.Now().UTC(),
	}
	if e.writer != nil {
		if err := e.writer.AppendItem(ctx, &item); err != nil {
			return err
		}
	}
	e.items = append(e.items, item)
	return nil
}

func (e *Executor) CallTool(ctx context.Context, toolId string, args map[string]any) (map[string]any, error) {
	if e.tools == nil {
		return nil, fmt.Errorf("tool %s not registered", toolId)
	}
	t, err := e.tools.Get(toolId)
	if err != nil {
		return nil, err
	}
	return t.Call(ctx, args)
}

// Handoff assigns the conversation to a human agent; the traversal wraps up to idle.
func (e *Executor) Handoff(ctx context.Context) error {
	if err := e.session.conversations.AssignConversation(ctx, e.conversation.Id, model.ASSIGNED_TO_AGENT); err != nil {
		return err
	}
	e.conversation.AssignedTo = model.ASSIGNED_TO_AGENT
	e.stopped = true
	return nil
}

func (e *Executor) log(event string, data map[string]any) {
	e.trace = append(e.trace, model.DebugEvent{Event: event, Data: data})
}
