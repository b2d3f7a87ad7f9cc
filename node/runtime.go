package node

import (
	"context"

	"github.com/mohitkumar/agentflow/model"
)

// Session is the part of the session context node handlers may touch.
type Session interface {
	NodeData(nodeId string) map[string]any
	UpdateNodeData(nodeId string, partial map[string]any)
	ClearNodeData(nodeId string)
	UpdateData(partial map[string]any)
	SetActiveFlow(ctx context.Context, flowId string) (string, bool)
	AttachToolResponse(ctx context.Context, nodeId string, toolId string, response map[string]any, failed bool) error
	GetToolResponse(ctx context.Context, toolId string, ancestorNodeIds []string) (*model.ToolResponse, error)
	UpdateAttributes(ctx context.Context, attributes []model.Attribute, checkPermission bool) error
}

// Runtime is what a node handler can call back into while the executor walks the graph.
type Runtime interface {
	GoToNode(ctx context.Context, nodeId string) error
	WaitForUserInput()
	Session() Session
	Graph() *Graph
	LatestUserMessage() *model.ConversationItem
	PreviousMessage() *model.ConversationItem
	// Data is the view templates and conditions are evaluated against.
	Data() map[string]any
	WriteMessage(ctx context.Context, nodeId string, body string, buttons []model.Button) error
	CallTool(ctx context.Context, toolId string, args map[string]any) (map[string]any, error)
	Handoff(ctx context.Context) error
}
