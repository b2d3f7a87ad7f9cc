package node

import (
	"context"
	"fmt"

	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/util"
	"go.uber.org/zap"
)

type GoToNodeConfig struct {
	TargetNodeId string `json:"targetNodeId"`
}

func (c *GoToNodeConfig) Type() NodeType { return NODE_GO_TO_NODE }

func (c *GoToNodeConfig) Validate() error {
	if len(c.TargetNodeId) == 0 {
		return fmt.Errorf("targetNodeId can not be empty")
	}
	return nil
}

var _ Handler = new(goToNode)

type goToNode struct {
	node   Node
	config *GoToNodeConfig
	rt     Runtime
}

func (g *goToNode) Execute(ctx context.Context) (bool, error) {
	return false, g.rt.GoToNode(ctx, g.config.TargetNodeId)
}

type RedirectFlowConfig struct {
	FlowId string `json:"flowId"`
}

func (c *RedirectFlowConfig) Type() NodeType { return NODE_REDIRECT_FLOW }

func (c *RedirectFlowConfig) Validate() error {
	if len(c.FlowId) == 0 {
		return fmt.Errorf("flowId can not be empty")
	}
	return nil
}

var _ Handler = new(redirectFlowNode)

type redirectFlowNode struct {
	node   Node
	config *RedirectFlowConfig
	rt     Runtime
}

func (r *redirectFlowNode) Execute(ctx context.Context) (bool, error) {
	entry, ok := r.rt.Session().SetActiveFlow(ctx, r.config.FlowId)
	if !ok {
		logger.Info("redirect refused", zap.String("nodeId", r.node.Id), zap.String("flowId", r.config.FlowId))
		return false, nil
	}
	return false, r.rt.GoToNode(ctx, entry)
}

type HandoffConfig struct {
	Message string `json:"message,omitempty"`
}

func (c *HandoffConfig) Type() NodeType { return NODE_HANDOFF }

func (c *HandoffConfig) Validate() error { return nil }

var _ Handler = new(handoffNode)

type handoffNode struct {
	node   Node
	config *HandoffConfig
	rt     Runtime
}

func (h *handoffNode) Execute(ctx context.Context) (bool, error) {
	visible := false
	if len(h.config.Message) > 0 {
		text := util.ResolveTemplate(h.rt.Data(), h.config.Message)
		if err := h.rt.WriteMessage(ctx, h.node.Id, text, nil); err != nil {
			return false, err
		}
		visible = true
	}
	return visible, h.rt.Handoff(ctx)
}

type StopConfig struct{}

func (c *StopConfig) Type() NodeType { return NODE_STOP }

func (c *StopConfig) Validate() error { return nil }

type stopNode struct{}

func (stopNode) Execute(context.Context) (bool, error) { return false, nil }
