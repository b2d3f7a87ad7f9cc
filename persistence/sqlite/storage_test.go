package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *sqliteStorage {
	storage, err := NewSqliteStorage(filepath.Join(t.TempDir(), "agentflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestSqliteFlows(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	_, err := storage.IncrementActivationCount(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrNotFound)

	require.NoError(t, storage.SaveFlow(ctx, model.FlowDefinition{Id: "f1", Name: "v1"}))
	require.NoError(t, storage.SaveFlow(ctx, model.FlowDefinition{Id: "f1", Name: "v2"}))
	count, err := storage.IncrementActivationCount(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	flow, err := storage.GetFlow(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, "v2", flow.Name)
	require.Equal(t, int64(1), flow.ActivationCount)

	require.NoError(t, storage.DeleteFlow(ctx, "f1"))
	_, err = storage.GetFlow(ctx, "f1")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestSqliteSessions(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	require.ErrorIs(t, storage.UpdateSession(ctx, &model.Session{ConversationId: "c1", Data: model.NewSessionData()}), persistence.ErrNotFound)

	data := model.NewSessionData()
	data.CurrentNodeId = "n1"
	session := &model.Session{Id: "s1", ConversationId: "c1", Status: model.SESSION_ACTIVE, ActiveFlowId: "f1", Data: data}
	require.NoError(t, storage.CreateSession(ctx, session))

	session.Status = model.SESSION_IDLE
	session.ActiveFlowId = ""
	session.Data.CurrentNodeId = ""
	require.NoError(t, storage.UpdateSession(ctx, session))

	got, err := storage.GetSession(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, model.SESSION_IDLE, got.Status)
	require.Empty(t, got.ActiveFlowId)
	require.Empty(t, got.Data.CurrentNodeId)
	require.Equal(t, "s1", got.Id)
}

func TestSqliteToolResponses(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	require.NoError(t, storage.AttachToolResponse(ctx, model.ToolResponse{SessionId: "s1", NodeId: "a", ToolId: "crm", Response: map[string]any{"n": float64(1)}}))
	require.NoError(t, storage.AttachToolResponse(ctx, model.ToolResponse{SessionId: "s1", NodeId: "a", ToolId: "crm", Response: map[string]any{"n": float64(2)}, Failed: true}))
	require.NoError(t, storage.AttachToolResponse(ctx, model.ToolResponse{SessionId: "s1", NodeId: "b", ToolId: "crm", Response: map[string]any{"n": float64(3)}}))

	res, err := storage.FindToolResponse(ctx, "s1", "crm", []string{"a"})
	require.NoError(t, err)
	require.Equal(t, float64(2), res.Response["n"])
	require.True(t, res.Failed)

	_, err = storage.FindToolResponse(ctx, "s1", "crm", nil)
	require.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = storage.FindToolResponse(ctx, "s1", "other", []string{"a", "b"})
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestSqliteConversations(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	require.NoError(t, storage.CreateConversation(ctx, &model.Conversation{Id: "c1", UserId: "u1", AssignedTo: model.ASSIGNED_TO_BOT}))
	require.NoError(t, storage.UpdateConversationAttributes(ctx, "c1", map[string]any{"topic": "billing"}))
	require.NoError(t, storage.AssignConversation(ctx, "c1", model.ASSIGNED_TO_AGENT))
	require.ErrorIs(t, storage.AssignConversation(ctx, "c2", model.ASSIGNED_TO_AGENT), persistence.ErrNotFound)

	conv, err := storage.GetConversation(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, model.ASSIGNED_TO_AGENT, conv.AssignedTo)
	require.Equal(t, "billing", conv.Attributes["topic"])

	require.NoError(t, storage.UpdateUserAttributes(ctx, "u1", map[string]any{"email": "a@b.c"}))
	user, err := storage.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "a@b.c", user.Attributes["email"])

	for _, body := range []string{"1", "2", "3"} {
		require.NoError(t, storage.AppendItem(ctx, &model.ConversationItem{ConversationId: "c1", Body: body}))
	}
	items, err := storage.ListItems(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "2", items[0].Body)
	all, err := storage.ListItems(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.NoError(t, storage.SaveAttributeDefinition(ctx, model.AttributeDefinition{Type: model.ATTRIBUTE_USER, Name: "email", Permission: model.PERMISSION_READ_ONLY}))
	require.NoError(t, storage.SaveAttributeDefinition(ctx, model.AttributeDefinition{Type: model.ATTRIBUTE_USER, Name: "email", Permission: model.PERMISSION_WRITABLE}))
	defs, err := storage.GetAttributeDefinitions(ctx, model.ATTRIBUTE_USER)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Equal(t, model.PERMISSION_WRITABLE, defs[0].Permission)
}
