package node

import (
	"errors"

	"github.com/mohitkumar/agentflow/model"
)

var (
	ErrNoEntryNode        = errors.New("flow has no node with parent start")
	ErrMultipleEntryNodes = errors.New("flow has more than one node with parent start")
)

// Graph indexes the nodes of a flow by id and by parent.
type Graph struct {
	nodes    []Node
	index    map[string]int
	children map[string][]string
}

func NewGraph(nodes []Node) *Graph {
	g := &Graph{
		nodes:    nodes,
		index:    make(map[string]int, len(nodes)),
		children: make(map[string][]string),
	}
	for i, n := range nodes {
		if _, dup := g.index[n.Id]; dup {
			continue
		}
		g.index[n.Id] = i
		g.children[n.ParentId] = append(g.children[n.ParentId], n.Id)
	}
	return g
}

func (g *Graph) Nodes() []Node {
	if g == nil {
		return nil
	}
	return g.nodes
}

func (g *Graph) Get(id string) (Node, bool) {
	if g == nil {
		return Node{}, false
	}
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Children returns the ids of nodes whose parent is id, in definition order.
func (g *Graph) Children(id string) []string {
	if g == nil {
		return nil
	}
	return g.children[id]
}

func (g *Graph) FirstChild(id string) string {
	children := g.Children(id)
	if len(children) == 0 {
		return ""
	}
	return children[0]
}

// Ancestors returns id followed by its parents up to the entry node.
func (g *Graph) Ancestors(id string) []string {
	var out []string
	seen := make(map[string]struct{})
	for current := id; current != "" && current != model.EntryParentId; {
		if _, ok := seen[current]; ok {
			break
		}
		n, ok := g.Get(current)
		if !ok {
			break
		}
		seen[current] = struct{}{}
		out = append(out, current)
		current = n.ParentId
	}
	return out
}

// EntryNode returns the only node whose parent is start.
func (g *Graph) EntryNode() (Node, error) {
	entries := g.Children(model.EntryParentId)
	switch len(entries) {
	case 0:
		return Node{}, ErrNoEntryNode
	case 1:
		n, _ := g.Get(entries[0])
		return n, nil
	default:
		return Node{}, ErrMultipleEntryNodes
	}
}
