package node

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/util"
	"go.uber.org/zap"
)

type ButtonsConfig struct {
	Text     string         `json:"text"`
	Buttons  []model.Button `json:"buttons"`
	Fallback string         `json:"fallback,omitempty"`
}

func (c *ButtonsConfig) Type() NodeType { return NODE_BUTTONS }

func (c *ButtonsConfig) Validate() error {
	if len(c.Buttons) == 0 {
		return fmt.Errorf("buttons node should have at least one button")
	}
	return validateButtons(c.Buttons)
}

var _ Handler = new(buttonsNode)

type buttonsNode struct {
	node   Node
	config *ButtonsConfig
	rt     Runtime
}

func (b *buttonsNode) Execute(ctx context.Context) (bool, error) {
	session := b.rt.Session()
	if !asked(session, b.node.Id) {
		data := b.rt.Data()
		text := util.ResolveTemplate(data, b.config.Text)
		if err := b.rt.WriteMessage(ctx, b.node.Id, text, resolveButtons(data, b.config.Buttons)); err != nil {
			return false, err
		}
		session.UpdateNodeData(b.node.Id, map[string]any{askedKey: true})
		b.rt.WaitForUserInput()
		return true, nil
	}
	reply := b.rt.LatestUserMessage()
	if reply == nil {
		b.rt.WaitForUserInput()
		return false, nil
	}
	next, matched := b.match(reply)
	if !matched {
		if len(b.config.Fallback) == 0 {
			logger.Info("no button matched, waiting again", zap.String("nodeId", b.node.Id), zap.String("body", reply.Body))
			b.rt.WaitForUserInput()
			return false, nil
		}
		next = b.config.Fallback
	}
	session.ClearNodeData(b.node.Id)
	if next == "" {
		next = b.rt.Graph().FirstChild(b.node.Id)
	}
	if next == "" {
		return false, nil
	}
	return false, b.rt.GoToNode(ctx, next)
}

// match compares a button click value first, then the typed text against labels and values.
func (b *buttonsNode) match(reply *model.ConversationItem) (string, bool) {
	for _, button := range b.config.Buttons {
		if len(reply.Value) > 0 && reply.Value == button.Value {
			return button.Next, true
		}
	}
	body := strings.TrimSpace(reply.Body)
	for _, button := range b.config.Buttons {
		if strings.EqualFold(body, button.Label) || (len(button.Value) > 0 && strings.EqualFold(body, button.Value)) {
			return button.Next, true
		}
	}
	return "", false
}
