package node

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohitkumar/agentflow/model"
)

type NodeType string

const (
	NODE_MESSAGE        NodeType = "message"
	NODE_QUESTION       NodeType = "question"
	NODE_BUTTONS        NodeType = "buttons"
	NODE_CONDITION      NodeType = "condition"
	NODE_TOOL_CALL      NodeType = "tool_call"
	NODE_SET_ATTRIBUTES NodeType = "set_attributes"
	NODE_GO_TO_NODE     NodeType = "go_to_node"
	NODE_REDIRECT_FLOW  NodeType = "redirect_flow"
	NODE_HANDOFF        NodeType = "handoff"
	NODE_STOP           NodeType = "stop"
)

// Config is implemented only by the configs of this package, one per NodeType.
type Config interface {
	Type() NodeType
	Validate() error
}

type Node struct {
	Id       string
	ParentId string
	Config   Config
}

func (n Node) Type() NodeType {
	return n.Config.Type()
}

// Decode builds the typed node of a stored definition.
func Decode(def model.NodeDefinition) (Node, error) {
	var cfg Config
	switch NodeType(def.Type) {
	case NODE_MESSAGE:
		cfg = &MessageConfig{}
	case NODE_QUESTION:
		cfg = &QuestionConfig{}
	case NODE_BUTTONS:
		cfg = &ButtonsConfig{}
	case NODE_CONDITION:
		cfg = &ConditionConfig{}
	case NODE_TOOL_CALL:
		cfg = &ToolCallConfig{}
	case NODE_SET_ATTRIBUTES:
		cfg = &SetAttributesConfig{}
	case NODE_GO_TO_NODE:
		cfg = &GoToNodeConfig{}
	case NODE_REDIRECT_FLOW:
		cfg = &RedirectFlowConfig{}
	case NODE_HANDOFF:
		cfg = &HandoffConfig{}
	case NODE_STOP:
		cfg = &StopConfig{}
	default:
		return Node{}, fmt.Errorf("nodeId=%s, unknown node type %s", def.Id, def.Type)
	}
	if len(def.Config) > 0 && string(def.Config) != "null" {
		if err := json.Unmarshal(def.Config, cfg); err != nil {
			return Node{}, fmt.Errorf("nodeId=%s, invalid %s config: %w", def.Id, def.Type, err)
		}
	}
	return Node{Id: def.Id, ParentId: def.ParentId, Config: cfg}, nil
}

// Handler runs one node. Execute reports whether the node produced output visible to the user.
type Handler interface {
	Execute(ctx context.Context) (bool, error)
}

// NewHandler returns the handler of n bound to rt.
func NewHandler(n Node, rt Runtime) (Handler, error) {
	switch cfg := n.Config.(type) {
	case *MessageConfig:
		return &messageNode{node: n, config: cfg, rt: rt}, nil
	case *QuestionConfig:
		return &questionNode{node: n, config: cfg, rt: rt}, nil
	case *ButtonsConfig:
		return &buttonsNode{node: n, config: cfg, rt: rt}, nil
	case *ConditionConfig:
		return &conditionNode{node: n, config: cfg, rt: rt}, nil
	case *ToolCallConfig:
		return &toolCallNode{node: n, config: cfg, rt: rt}, nil
	case *SetAttributesConfig:
		return &setAttributesNode{node: n, config: cfg, rt: rt}, nil
	case *GoToNodeConfig:
		return &goToNode{node: n, config: cfg, rt: rt}, nil
	case *RedirectFlowConfig:
		return &redirectFlowNode{node: n, config: cfg, rt: rt}, nil
	case *HandoffConfig:
		return &handoffNode{node: n, config: cfg, rt: rt}, nil
	case *StopConfig:
		return stopNode{}, nil
	default:
		return nil, fmt.Errorf("nodeId=%s, no handler for node config %T", n.Id, n.Config)
	}
}
