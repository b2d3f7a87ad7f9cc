package node

import (
	"context"
	"fmt"

	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/util"
	"go.uber.org/zap"
)

type ConditionConfig struct {
	Expression string            `json:"expression"`
	Cases      map[string]string `json:"cases"`
	Default    string            `json:"default,omitempty"`
}

func (c *ConditionConfig) Type() NodeType { return NODE_CONDITION }

func (c *ConditionConfig) Validate() error {
	if len(c.Expression) == 0 {
		return fmt.Errorf("expression can not be empty")
	}
	if err := util.ValidateExpression(c.Expression); err != nil {
		return fmt.Errorf("expression should be a valid jsonpath expression: %w", err)
	}
	if len(c.Cases) == 0 && len(c.Default) == 0 {
		return fmt.Errorf("condition node should have at least one case or a default")
	}
	return nil
}

var _ Handler = new(conditionNode)

type conditionNode struct {
	node   Node
	config *ConditionConfig
	rt     Runtime
}

func (c *conditionNode) Execute(ctx context.Context) (bool, error) {
	next := c.config.Default
	value, err := util.Lookup(c.rt.Data(), c.config.Expression)
	if err != nil {
		logger.Debug("condition expression did not resolve", zap.String("nodeId", c.node.Id), zap.Error(err))
	} else if target, ok := c.config.Cases[util.Stringify(value)]; ok {
		next = target
	}
	if next == "" {
		next = c.rt.Graph().FirstChild(c.node.Id)
	}
	if next == "" {
		return false, nil
	}
	return false, c.rt.GoToNode(ctx, next)
}
