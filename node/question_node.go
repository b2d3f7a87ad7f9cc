package node

import (
	"context"
	"fmt"

	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/util"
	"go.uber.org/zap"
)

const askedKey = "asked"

type QuestionConfig struct {
	Text      string `json:"text"`
	Attribute string `json:"attribute"`
}

func (c *QuestionConfig) Type() NodeType { return NODE_QUESTION }

func (c *QuestionConfig) Validate() error {
	if len(c.Text) == 0 {
		return fmt.Errorf("text can not be empty")
	}
	if len(c.Attribute) == 0 {
		return fmt.Errorf("attribute can not be empty")
	}
	return nil
}

var _ Handler = new(questionNode)

type questionNode struct {
	node   Node
	config *QuestionConfig
	rt     Runtime
}

func (q *questionNode) Execute(ctx context.Context) (bool, error) {
	session := q.rt.Session()
	if !asked(session, q.node.Id) {
		logger.Debug("asking question", zap.String("nodeId", q.node.Id))
		text := util.ResolveTemplate(q.rt.Data(), q.config.Text)
		if err := q.rt.WriteMessage(ctx, q.node.Id, text, nil); err != nil {
			return false, err
		}
		session.UpdateNodeData(q.node.Id, map[string]any{askedKey: true})
		q.rt.WaitForUserInput()
		return true, nil
	}
	answer := q.rt.LatestUserMessage()
	if answer == nil {
		q.rt.WaitForUserInput()
		return false, nil
	}
	session.UpdateData(map[string]any{q.config.Attribute: answer.Body})
	session.ClearNodeData(q.node.Id)
	if next := q.rt.Graph().FirstChild(q.node.Id); next != "" {
		return false, q.rt.GoToNode(ctx, next)
	}
	return false, nil
}

func asked(session Session, nodeId string) bool {
	v, ok := session.NodeData(nodeId)[askedKey].(bool)
	return ok && v
}

