package cache

import (
	"testing"

	"github.com/mohitkumar/agentflow/node"
	"github.com/stretchr/testify/require"
)

func TestFlowCache(t *testing.T) {
	ch := NewFlowCache(0)
	_, ok := ch.GetFlow("f1")
	require.False(t, ok)

	ch.SaveFlow(&node.Flow{Id: "f1", Name: "greeting"})
	flow, ok := ch.GetFlow("f1")
	require.True(t, ok)
	require.Equal(t, "greeting", flow.Name)

	ch.Invalidate("f1")
	_, ok = ch.GetFlow("f1")
	require.False(t, ok)
}
