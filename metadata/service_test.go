package metadata

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mohitkumar/agentflow/cache"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/persistence/memory"
	"github.com/stretchr/testify/require"
)

func greeting(text string) model.FlowDefinition {
	cfg, _ := json.Marshal(map[string]any{"text": text})
	return model.FlowDefinition{
		Id:   "greeting",
		Name: "Greeting",
		Nodes: []model.NodeDefinition{
			{Id: "n1", ParentId: model.EntryParentId, Type: "message", Config: cfg},
		},
	}
}

func TestMetadataService(t *testing.T) {
	ctx := context.Background()
	for scenario, fn := range map[string]func(t *testing.T, svc MetadataService){
		"save compiles and caches": func(t *testing.T, svc MetadataService) {
			require.NoError(t, svc.SaveFlow(ctx, greeting("hi")))
			flow, err := svc.GetFlow(ctx, "greeting")
			require.NoError(t, err)
			again, err := svc.GetFlow(ctx, "greeting")
			require.NoError(t, err)
			require.Same(t, flow, again)
			entry, err := flow.EntryNodeId()
			require.NoError(t, err)
			require.Equal(t, "n1", entry)
		},
		"save invalidates cached flow": func(t *testing.T, svc MetadataService) {
			require.NoError(t, svc.SaveFlow(ctx, greeting("hi")))
			first, err := svc.GetFlow(ctx, "greeting")
			require.NoError(t, err)
			require.NoError(t, svc.SaveFlow(ctx, greeting("hello")))
			second, err := svc.GetFlow(ctx, "greeting")
			require.NoError(t, err)
			require.NotSame(t, first, second)
		},
		"invalid flow is rejected": func(t *testing.T, svc MetadataService) {
			def := greeting("hi")
			def.Nodes = append(def.Nodes, model.NodeDefinition{Id: "n2", ParentId: model.EntryParentId, Type: "stop"})
			require.Error(t, svc.SaveFlow(ctx, def))
			_, err := svc.GetFlow(ctx, "greeting")
			require.ErrorIs(t, err, persistence.ErrNotFound)
		},
		"delete removes flow": func(t *testing.T, svc MetadataService) {
			require.NoError(t, svc.SaveFlow(ctx, greeting("hi")))
			_, err := svc.GetFlow(ctx, "greeting")
			require.NoError(t, err)
			require.NoError(t, svc.DeleteFlow(ctx, "greeting"))
			_, err = svc.GetFlow(ctx, "greeting")
			require.ErrorIs(t, err, persistence.ErrNotFound)
		},
		"activation count": func(t *testing.T, svc MetadataService) {
			require.NoError(t, svc.SaveFlow(ctx, greeting("hi")))
			require.NoError(t, svc.IncrementActivationCount(ctx, "greeting"))
			require.NoError(t, svc.IncrementActivationCount(ctx, "greeting"))
			def, err := svc.GetFlowDefinition(ctx, "greeting")
			require.NoError(t, err)
			require.Equal(t, int64(2), def.ActivationCount)
		},
		"attribute definitions default to writable": func(t *testing.T, svc MetadataService) {
			require.NoError(t, svc.SaveAttributeDefinition(ctx, model.AttributeDefinition{Type: model.ATTRIBUTE_USER, Name: "email"}))
			require.Error(t, svc.SaveAttributeDefinition(ctx, model.AttributeDefinition{Type: "planet", Name: "x"}))
			defs, err := svc.GetAttributeDefinitions(ctx, model.ATTRIBUTE_USER)
			require.NoError(t, err)
			require.Len(t, defs, 1)
			require.Equal(t, model.PERMISSION_WRITABLE, defs[0].Permission)
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewMetadataService(memory.NewMemoryStorage(), cache.NewFlowCache(0)))
		})
	}
}
