package node

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mohitkumar/agentflow/model"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	nodeData  map[string]map[string]any
	custom    map[string]any
	responses []model.ToolResponse
	attrs     []model.Attribute
	redirect  string
}

func newFakeSession() *fakeSession {
	return &fakeSession{nodeData: map[string]map[string]any{}, custom: map[string]any{}}
}

func (s *fakeSession) NodeData(nodeId string) map[string]any { return s.nodeData[nodeId] }

func (s *fakeSession) UpdateNodeData(nodeId string, partial map[string]any) {
	if s.nodeData[nodeId] == nil {
		s.nodeData[nodeId] = map[string]any{}
	}
	for k, v := range partial {
		s.nodeData[nodeId][k] = v
	}
}

func (s *fakeSession) ClearNodeData(nodeId string) { delete(s.nodeData, nodeId) }

func (s *fakeSession) UpdateData(partial map[string]any) {
	for k, v := range partial {
		s.custom[k] = v
	}
}

func (s *fakeSession) SetActiveFlow(ctx context.Context, flowId string) (string, bool) {
	if s.redirect == "" {
		return "", false
	}
	return s.redirect, true
}

func (s *fakeSession) AttachToolResponse(ctx context.Context, nodeId string, toolId string, response map[string]any, failed bool) error {
	s.responses = append(s.responses, model.ToolResponse{NodeId: nodeId, ToolId: toolId, Response: response, Failed: failed})
	return nil
}

func (s *fakeSession) GetToolResponse(ctx context.Context, toolId string, ancestorNodeIds []string) (*model.ToolResponse, error) {
	for i := len(s.responses) - 1; i >= 0; i-- {
		r := s.responses[i]
		for _, id := range ancestorNodeIds {
			if r.ToolId == toolId && r.NodeId == id {
				return &r, nil
			}
		}
	}
	return nil, nil
}

func (s *fakeSession) UpdateAttributes(ctx context.Context, attributes []model.Attribute, checkPermission bool) error {
	s.attrs = append(s.attrs, attributes...)
	return nil
}

type fakeRuntime struct {
	graph    *Graph
	session  *fakeSession
	latest   *model.ConversationItem
	visited  []string
	waiting  bool
	written  []string
	handoff  bool
	toolCall func(args map[string]any) (map[string]any, error)
	calls    int
}

func (r *fakeRuntime) GoToNode(ctx context.Context, nodeId string) error {
	r.visited = append(r.visited, nodeId)
	return nil
}
func (r *fakeRuntime) WaitForUserInput()                         { r.waiting = true }
func (r *fakeRuntime) Session() Session                          { return r.session }
func (r *fakeRuntime) Graph() *Graph                             { return r.graph }
func (r *fakeRuntime) LatestUserMessage() *model.ConversationItem { return r.latest }
func (r *fakeRuntime) PreviousMessage() *model.ConversationItem   { return nil }
func (r *fakeRuntime) Data() map[string]any {
	return map[string]any{"custom": r.session.custom}
}
func (r *fakeRuntime) WriteMessage(ctx context.Context, nodeId string, body string, buttons []model.Button) error {
	r.written = append(r.written, body)
	return nil
}
func (r *fakeRuntime) CallTool(ctx context.Context, toolId string, args map[string]any) (map[string]any, error) {
	r.calls++
	return r.toolCall(args)
}
func (r *fakeRuntime) Handoff(ctx context.Context) error {
	r.handoff = true
	return nil
}

func def(id, parent string, typ NodeType, cfg any) model.NodeDefinition {
	raw, _ := json.Marshal(cfg)
	return model.NodeDefinition{Id: id, ParentId: parent, Type: string(typ), Config: raw}
}

func compile(t *testing.T, defs ...model.NodeDefinition) *Flow {
	t.Helper()
	flow, err := Compile(model.FlowDefinition{Id: "f1", Nodes: defs})
	require.NoError(t, err)
	return flow
}

func run(t *testing.T, rt *fakeRuntime, id string) bool {
	t.Helper()
	n, ok := rt.graph.Get(id)
	require.True(t, ok)
	h, err := NewHandler(n, rt)
	require.NoError(t, err)
	visible, err := h.Execute(context.Background())
	require.NoError(t, err)
	return visible
}

func TestGraph(t *testing.T) {
	flow := compile(t,
		def("a", model.EntryParentId, NODE_MESSAGE, MessageConfig{Text: "hi"}),
		def("b", "a", NODE_MESSAGE, MessageConfig{Text: "b"}),
		def("c", "a", NODE_STOP, nil),
		def("d", "b", NODE_STOP, nil),
	)
	g := flow.Graph
	require.Equal(t, []string{"b", "c"}, g.Children("a"))
	require.Equal(t, "b", g.FirstChild("a"))
	require.Equal(t, "", g.FirstChild("d"))
	require.Equal(t, []string{"d", "b", "a"}, g.Ancestors("d"))
	entry, err := flow.EntryNodeId()
	require.NoError(t, err)
	require.Equal(t, "a", entry)

	_, err = NewGraph(nil).EntryNode()
	require.ErrorIs(t, err, ErrNoEntryNode)

	two := compile(t,
		def("a", model.EntryParentId, NODE_STOP, nil),
		def("b", model.EntryParentId, NODE_STOP, nil),
	)
	_, err = two.Graph.EntryNode()
	require.ErrorIs(t, err, ErrMultipleEntryNodes)
	require.True(t, IsEntryError(err))
}

func TestValidate(t *testing.T) {
	for scenario, tc := range map[string]struct {
		nodes []model.NodeDefinition
		valid bool
	}{
		"valid flow": {nodes: []model.NodeDefinition{
			def("a", model.EntryParentId, NODE_QUESTION, QuestionConfig{Text: "name?", Attribute: "name"}),
			def("b", "a", NODE_GO_TO_NODE, GoToNodeConfig{TargetNodeId: "a"}),
		}, valid: true},
		"duplicate id": {nodes: []model.NodeDefinition{
			def("a", model.EntryParentId, NODE_STOP, nil),
			def("a", "a", NODE_STOP, nil),
		}},
		"unknown type": {nodes: []model.NodeDefinition{
			{Id: "a", ParentId: model.EntryParentId, Type: "teleport"},
		}},
		"missing parent": {nodes: []model.NodeDefinition{
			def("a", model.EntryParentId, NODE_STOP, nil),
			def("b", "x", NODE_STOP, nil),
		}},
		"no entry": {nodes: []model.NodeDefinition{
			def("a", "b", NODE_STOP, nil),
			def("b", "a", NODE_STOP, nil),
		}},
		"two entries": {nodes: []model.NodeDefinition{
			def("a", model.EntryParentId, NODE_STOP, nil),
			def("b", model.EntryParentId, NODE_STOP, nil),
		}},
		"unknown go to target": {nodes: []model.NodeDefinition{
			def("a", model.EntryParentId, NODE_GO_TO_NODE, GoToNodeConfig{TargetNodeId: "zz"}),
		}},
		"bad condition expression": {nodes: []model.NodeDefinition{
			def("a", model.EntryParentId, NODE_CONDITION, ConditionConfig{Expression: "custom.x", Default: "a"}),
		}},
	} {
		t.Run(scenario, func(t *testing.T) {
			err := Validate(model.FlowDefinition{Id: "f1", Nodes: tc.nodes})
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestHandlers(t *testing.T) {
	flow := compile(t,
		def("msg", model.EntryParentId, NODE_MESSAGE, MessageConfig{Text: "Hello {$.custom.name}"}),
		def("ask", "msg", NODE_QUESTION, QuestionConfig{Text: "Your email?", Attribute: "email"}),
		def("pick", "ask", NODE_BUTTONS, ButtonsConfig{Text: "Pick", Buttons: []model.Button{
			{Label: "Yes", Value: "y", Next: "yes"},
			{Label: "No", Value: "n", Next: "no"},
		}, Fallback: "cond"}),
		def("yes", "pick", NODE_STOP, nil),
		def("no", "pick", NODE_STOP, nil),
		def("cond", "pick", NODE_CONDITION, ConditionConfig{Expression: "{$.custom.count}", Cases: map[string]string{"2": "yes"}, Default: "no"}),
		def("tool", "cond", NODE_TOOL_CALL, ToolCallConfig{ToolId: "lookup", Reuse: true, OutputKey: "order", OnSuccess: "yes", OnFailure: "no", Arguments: map[string]any{"id": "{$.custom.count}"}}),
		def("handoff", "tool", NODE_HANDOFF, HandoffConfig{Message: "connecting"}),
		def("redirect", "tool", NODE_REDIRECT_FLOW, RedirectFlowConfig{FlowId: "f2"}),
	)
	newRuntime := func() *fakeRuntime {
		return &fakeRuntime{graph: flow.Graph, session: newFakeSession()}
	}
	for scenario, fn := range map[string]func(t *testing.T, rt *fakeRuntime){
		"message resolves template and continues": func(t *testing.T, rt *fakeRuntime) {
			rt.session.custom["name"] = "Ann"
			require.True(t, run(t, rt, "msg"))
			require.Equal(t, []string{"Hello Ann"}, rt.written)
			require.Equal(t, []string{"ask"}, rt.visited)
		},
		"question asks once then stores the answer": func(t *testing.T, rt *fakeRuntime) {
			require.True(t, run(t, rt, "ask"))
			require.True(t, rt.waiting)
			require.Empty(t, rt.visited)

			rt.latest = &model.ConversationItem{Author: model.AUTHOR_USER, Body: "a@b.c"}
			require.False(t, run(t, rt, "ask"))
			require.Equal(t, "a@b.c", rt.session.custom["email"])
			require.Equal(t, []string{"pick"}, rt.visited)
			require.Len(t, rt.written, 1)
			require.Nil(t, rt.session.NodeData("ask"))
		},
		"buttons match value then label then fallback": func(t *testing.T, rt *fakeRuntime) {
			run(t, rt, "pick")
			rt.latest = &model.ConversationItem{Type: model.ITEM_BUTTON_CLICK, Value: "n"}
			run(t, rt, "pick")
			run(t, rt, "pick")
			rt.latest = &model.ConversationItem{Body: " yes "}
			run(t, rt, "pick")
			run(t, rt, "pick")
			rt.latest = &model.ConversationItem{Body: "maybe"}
			run(t, rt, "pick")
			require.Equal(t, []string{"no", "yes", "cond"}, rt.visited)
		},
		"condition matches stringified number": func(t *testing.T, rt *fakeRuntime) {
			rt.session.custom["count"] = float64(2)
			require.False(t, run(t, rt, "cond"))
			rt.session.custom["count"] = float64(3)
			run(t, rt, "cond")
			delete(rt.session.custom, "count")
			run(t, rt, "cond")
			require.Equal(t, []string{"yes", "no", "no"}, rt.visited)
		},
		"tool call reuses ancestor response": func(t *testing.T, rt *fakeRuntime) {
			rt.session.custom["count"] = float64(7)
			rt.toolCall = func(args map[string]any) (map[string]any, error) {
				return map[string]any{"id": args["id"]}, nil
			}
			run(t, rt, "tool")
			run(t, rt, "tool")
			require.Equal(t, 1, rt.calls)
			require.Equal(t, map[string]any{"id": float64(7)}, rt.session.custom["order"])
			require.Equal(t, []string{"yes", "yes"}, rt.visited)
		},
		"tool call failure goes to onFailure": func(t *testing.T, rt *fakeRuntime) {
			rt.toolCall = func(args map[string]any) (map[string]any, error) {
				return nil, errors.New("boom")
			}
			run(t, rt, "tool")
			require.True(t, rt.session.responses[0].Failed)
			require.Equal(t, []string{"no"}, rt.visited)
		},
		"handoff writes message and assigns": func(t *testing.T, rt *fakeRuntime) {
			require.True(t, run(t, rt, "handoff"))
			require.True(t, rt.handoff)
		},
		"redirect goes to new entry only when accepted": func(t *testing.T, rt *fakeRuntime) {
			run(t, rt, "redirect")
			require.Empty(t, rt.visited)
			rt.session.redirect = "entry2"
			run(t, rt, "redirect")
			require.Equal(t, []string{"entry2"}, rt.visited)
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, newRuntime())
		})
	}
}
