package node

import (
	"errors"
	"fmt"

	"github.com/mohitkumar/agentflow/model"
)

// Flow is a compiled flow definition.
type Flow struct {
	Id    string
	Name  string
	Graph *Graph
}

// EntryNodeId resolves the entry of the flow, see Graph.EntryNode.
func (f *Flow) EntryNodeId() (string, error) {
	n, err := f.Graph.EntryNode()
	if err != nil {
		return "", err
	}
	return n.Id, nil
}

// Compile decodes every node of def. It does not check the graph shape, see Validate.
func Compile(def model.FlowDefinition) (*Flow, error) {
	nodes := make([]Node, 0, len(def.Nodes))
	for _, nodeDef := range def.Nodes {
		n, err := Decode(nodeDef)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return &Flow{Id: def.Id, Name: def.Name, Graph: NewGraph(nodes)}, nil
}

// Validate rejects definitions the executor could not walk sensibly.
func Validate(def model.FlowDefinition) error {
	if len(def.Id) == 0 {
		return fmt.Errorf("flow id can not be empty")
	}
	if len(def.Nodes) == 0 {
		return fmt.Errorf("flow %s has no nodes", def.Id)
	}
	ids := make(map[string]struct{}, len(def.Nodes))
	for _, n := range def.Nodes {
		if len(n.Id) == 0 {
			return fmt.Errorf("node id can not be empty")
		}
		if n.Id == model.EntryParentId {
			return fmt.Errorf("node id %s is reserved", n.Id)
		}
		if _, ok := ids[n.Id]; ok {
			return fmt.Errorf("node id %s is duplicate", n.Id)
		}
		ids[n.Id] = struct{}{}
	}
	flow, err := Compile(def)
	if err != nil {
		return err
	}
	if _, err := flow.Graph.EntryNode(); err != nil {
		return fmt.Errorf("flow %s: %w", def.Id, err)
	}
	exists := func(id string) bool {
		_, ok := ids[id]
		return ok
	}
	for _, n := range flow.Graph.Nodes() {
		if n.ParentId != model.EntryParentId && !exists(n.ParentId) {
			return fmt.Errorf("nodeId=%s, parent %s not defined", n.Id, n.ParentId)
		}
		if err := n.Config.Validate(); err != nil {
			return fmt.Errorf("nodeId=%s, %w", n.Id, err)
		}
		for _, target := range targets(n) {
			if !exists(target) {
				return fmt.Errorf("nodeId=%s, target node %s not defined", n.Id, target)
			}
		}
	}
	return nil
}

// targets lists the explicit jumps of a node, ignoring empty ones.
func targets(n Node) []string {
	var out []string
	add := func(ids ...string) {
		for _, id := range ids {
			if id != "" {
				out = append(out, id)
			}
		}
	}
	switch cfg := n.Config.(type) {
	case *MessageConfig:
		for _, b := range cfg.Buttons {
			add(b.Next)
		}
	case *ButtonsConfig:
		for _, b := range cfg.Buttons {
			add(b.Next)
		}
		add(cfg.Fallback)
	case *ConditionConfig:
		for _, next := range cfg.Cases {
			add(next)
		}
		add(cfg.Default)
	case *ToolCallConfig:
		add(cfg.OnSuccess, cfg.OnFailure)
	case *GoToNodeConfig:
		add(cfg.TargetNodeId)
	}
	return out
}

// IsEntryError reports whether err comes from entry node resolution.
func IsEntryError(err error) bool {
	return errors.Is(err, ErrNoEntryNode) || errors.Is(err, ErrMultipleEntryNodes)
}
