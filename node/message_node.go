package node

import (
	"context"
	"fmt"

	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/util"
	"go.uber.org/zap"
)

type MessageConfig struct {
	Text    string         `json:"text"`
	Buttons []model.Button `json:"buttons,omitempty"`
}

func (c *MessageConfig) Type() NodeType { return NODE_MESSAGE }

func (c *MessageConfig) Validate() error {
	if len(c.Text) == 0 {
		return fmt.Errorf("text can not be empty")
	}
	return validateButtons(c.Buttons)
}

var _ Handler = new(messageNode)

type messageNode struct {
	node   Node
	config *MessageConfig
	rt     Runtime
}

func (m *messageNode) Execute(ctx context.Context) (bool, error) {
	logger.Debug("running node", zap.String("type", string(NODE_MESSAGE)), zap.String("nodeId", m.node.Id))
	if routesButtons(m.config.Buttons) {
		// buttons with targets wait for the click like a buttons node
		choice := &buttonsNode{node: m.node, config: &ButtonsConfig{Text: m.config.Text, Buttons: m.config.Buttons}, rt: m.rt}
		return choice.Execute(ctx)
	}
	data := m.rt.Data()
	text := util.ResolveTemplate(data, m.config.Text)
	if err := m.rt.WriteMessage(ctx, m.node.Id, text, resolveButtons(data, m.config.Buttons)); err != nil {
		return false, err
	}
	if next := m.rt.Graph().FirstChild(m.node.Id); next != "" {
		if err := m.rt.GoToNode(ctx, next); err != nil {
			return true, err
		}
	}
	return true, nil
}

func validateButtons(buttons []model.Button) error {
	for i, b := range buttons {
		if len(b.Label) == 0 {
			return fmt.Errorf("button %d label can not be empty", i)
		}
	}
	return nil
}

func routesButtons(buttons []model.Button) bool {
	for _, b := range buttons {
		if len(b.Next) > 0 {
			return true
		}
	}
	return false
}

func resolveButtons(data map[string]any, buttons []model.Button) []model.Button {
	if len(buttons) == 0 {
		return nil
	}
	out := make([]model.Button, 0, len(buttons))
	for _, b := range buttons {
		b.Label = util.ResolveTemplate(data, b.Label)
		out = append(out, b)
	}
	return out
}
