package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mohitkumar/agentflow/cache"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/metadata"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/persistence/memory"
	"github.com/mohitkumar/agentflow/stream"
	"github.com/mohitkumar/agentflow/tool"
	"github.com/stretchr/testify/require"
)

func cfg(v any) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}

func newService(t *testing.T) (*ConversationService, metadata.MetadataService) {
	storage := memory.NewMemoryStorage()
	meta := metadata.NewMetadataService(storage, cache.NewFlowCache(0))
	require.NoError(t, meta.SaveFlow(context.Background(), model.FlowDefinition{
		Id:   "support",
		Name: "Support",
		Nodes: []model.NodeDefinition{
			{Id: "welcome", ParentId: model.EntryParentId, Type: "message", Config: cfg(map[string]any{"text": "Welcome"})},
			{Id: "topic", ParentId: "welcome", Type: "buttons", Config: cfg(map[string]any{
				"text": "What do you need?",
				"buttons": []map[string]any{
					{"label": "Billing", "value": "billing", "next": "billing"},
					{"label": "Human", "value": "human", "next": "human"},
				},
			})},
			{Id: "billing", ParentId: "topic", Type: "question", Config: cfg(map[string]any{"text": "Invoice number?", "attribute": "invoice"})},
			{Id: "thanks", ParentId: "billing", Type: "message", Config: cfg(map[string]any{"text": "Thanks, looking up {$.custom.invoice}"})},
			{Id: "human", ParentId: "topic", Type: "handoff", Config: cfg(map[string]any{"message": "Connecting you"})},
		},
	}))
	conf := config.ExecutorConfig{DebugTrace: true}
	return NewConversationService(storage, meta, stream.LogEmitter{}, tool.NewDefaultRegistry(), conf), meta
}

func TestConversationService(t *testing.T) {
	ctx := context.Background()
	for scenario, fn := range map[string]func(t *testing.T, svc *ConversationService, conv *model.Conversation){
		"full billing path": func(t *testing.T, svc *ConversationService, conv *model.Conversation) {
			res, err := svc.ActivateFlow(ctx, conv.Id, "support")
			require.NoError(t, err)
			require.Equal(t, model.SESSION_WAITING_FOR_USER_INPUT, res.Status)
			require.Equal(t, "topic", res.CurrentNodeId)
			require.Equal(t, []string{"welcome", "topic"}, res.ExecutedNodes)
			require.NotEmpty(t, res.Trace)

			res, err = svc.HandleMessage(ctx, conv.Id, model.MessageRequest{Type: model.ITEM_BUTTON_CLICK, Body: "Billing", Value: "billing"})
			require.NoError(t, err)
			require.Equal(t, "billing", res.CurrentNodeId)
			require.Equal(t, "Invoice number?", res.Items[0].Body)

			res, err = svc.HandleMessage(ctx, conv.Id, model.MessageRequest{Body: "INV-42"})
			require.NoError(t, err)
			require.Equal(t, model.SESSION_IDLE, res.Status)
			require.Equal(t, "Thanks, looking up INV-42", res.Items[0].Body)

			session, err := svc.GetSession(ctx, conv.Id)
			require.NoError(t, err)
			require.Equal(t, "INV-42", session.Data.Custom["invoice"])
			require.Equal(t, "", session.Data.CurrentNodeId)

			items, err := svc.ListItems(ctx, conv.Id, 0)
			require.NoError(t, err)
			require.Len(t, items, 6)
		},
		"idle session produces an empty turn": func(t *testing.T, svc *ConversationService, conv *model.Conversation) {
			res, err := svc.HandleMessage(ctx, conv.Id, model.MessageRequest{Body: "hello"})
			require.NoError(t, err)
			require.False(t, res.ExecutedAny)
			require.Empty(t, res.Items)
			_, err = svc.GetSession(ctx, conv.Id)
			require.ErrorIs(t, err, persistence.ErrNotFound)
		},
		"handoff button assigns to agent": func(t *testing.T, svc *ConversationService, conv *model.Conversation) {
			_, err := svc.ActivateFlow(ctx, conv.Id, "support")
			require.NoError(t, err)
			res, err := svc.HandleMessage(ctx, conv.Id, model.MessageRequest{Body: "human"})
			require.NoError(t, err)
			require.Equal(t, model.SESSION_IDLE, res.Status)
			got, err := svc.GetConversation(ctx, conv.Id)
			require.NoError(t, err)
			require.True(t, got.AssignedToAgent())
		},
		"assigning to agent resets the session": func(t *testing.T, svc *ConversationService, conv *model.Conversation) {
			_, err := svc.ActivateFlow(ctx, conv.Id, "support")
			require.NoError(t, err)
			res, err := svc.AssignConversation(ctx, conv.Id, model.ASSIGNED_TO_AGENT)
			require.NoError(t, err)
			require.Equal(t, model.SESSION_IDLE, res.Status)
			require.Empty(t, res.ExecutedNodes)

			res, err = svc.HandleMessage(ctx, conv.Id, model.MessageRequest{Body: "Billing"})
			require.NoError(t, err)
			require.False(t, res.ExecutedAny)
		},
		"invalid requests": func(t *testing.T, svc *ConversationService, conv *model.Conversation) {
			_, err := svc.HandleMessage(ctx, conv.Id, model.MessageRequest{})
			require.ErrorIs(t, err, ErrEmptyMessage)
			_, err = svc.ActivateFlow(ctx, conv.Id, "missing")
			require.ErrorIs(t, err, ErrFlowNotActivated)
			_, err = svc.AssignConversation(ctx, conv.Id, "robot")
			require.ErrorIs(t, err, ErrInvalidAssignee)
			_, err = svc.HandleMessage(ctx, "nope", model.MessageRequest{Body: "x"})
			require.ErrorIs(t, err, persistence.ErrNotFound)
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			svc, _ := newService(t)
			conv, err := svc.CreateConversation(ctx, model.CreateConversationRequest{UserId: "u1"})
			require.NoError(t, err)
			fn(t, svc, conv)
		})
	}
}
