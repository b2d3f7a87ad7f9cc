package node

import (
	"context"
	"fmt"

	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/util"
	"go.uber.org/zap"
)

type ToolCallConfig struct {
	ToolId    string         `json:"toolId"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Reuse     bool           `json:"reuse,omitempty"`
	// OutputKey, when set, stores the response under custom[OutputKey].
	OutputKey string `json:"outputKey,omitempty"`
	OnSuccess string `json:"onSuccess,omitempty"`
	OnFailure string `json:"onFailure,omitempty"`
}

func (c *ToolCallConfig) Type() NodeType { return NODE_TOOL_CALL }

func (c *ToolCallConfig) Validate() error {
	if len(c.ToolId) == 0 {
		return fmt.Errorf("toolId can not be empty")
	}
	return nil
}

var _ Handler = new(toolCallNode)

type toolCallNode struct {
	node   Node
	config *ToolCallConfig
	rt     Runtime
}

func (t *toolCallNode) Execute(ctx context.Context) (bool, error) {
	session := t.rt.Session()
	response, failed, err := t.previousResponse(ctx)
	if err != nil {
		return false, err
	}
	if response == nil {
		args := util.ResolveParams(t.rt.Data(), t.config.Arguments)
		out, callErr := t.rt.CallTool(ctx, t.config.ToolId, args)
		if callErr != nil {
			logger.Error("tool call failed", zap.String("toolId", t.config.ToolId), zap.String("nodeId", t.node.Id), zap.Error(callErr))
			out = map[string]any{"error": callErr.Error()}
			failed = true
		}
		if out == nil {
			out = map[string]any{}
		}
		if err := session.AttachToolResponse(ctx, t.node.Id, t.config.ToolId, out, failed); err != nil {
			return false, err
		}
		response = out
	}
	if len(t.config.OutputKey) > 0 {
		session.UpdateData(map[string]any{t.config.OutputKey: response})
	}
	next := t.config.OnSuccess
	if failed {
		next = t.config.OnFailure
	}
	if next == "" {
		next = t.rt.Graph().FirstChild(t.node.Id)
	}
	if next == "" {
		return false, nil
	}
	return false, t.rt.GoToNode(ctx, next)
}

func (t *toolCallNode) previousResponse(ctx context.Context) (map[string]any, bool, error) {
	if !t.config.Reuse {
		return nil, false, nil
	}
	prev, err := t.rt.Session().GetToolResponse(ctx, t.config.ToolId, t.rt.Graph().Ancestors(t.node.Id))
	if err != nil || prev == nil {
		return nil, false, err
	}
	logger.Debug("reusing tool response", zap.String("toolId", t.config.ToolId), zap.String("fromNode", prev.NodeId))
	response := prev.Response
	if response == nil {
		response = map[string]any{}
	}
	return response, prev.Failed, nil
}
