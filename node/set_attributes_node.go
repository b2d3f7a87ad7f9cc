package node

import (
	"context"
	"fmt"

	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/util"
)

type SetAttributesConfig struct {
	Attributes      []model.Attribute `json:"attributes"`
	CheckPermission bool              `json:"checkPermission,omitempty"`
}

func (c *SetAttributesConfig) Type() NodeType { return NODE_SET_ATTRIBUTES }

func (c *SetAttributesConfig) Validate() error {
	if len(c.Attributes) == 0 {
		return fmt.Errorf("set_attributes node should have at least one attribute")
	}
	for _, attr := range c.Attributes {
		if len(attr.Name) == 0 {
			return fmt.Errorf("attribute name can not be empty")
		}
		if !attr.Type.Valid() {
			return fmt.Errorf("attribute %s has invalid type %s", attr.Name, attr.Type)
		}
	}
	return nil
}

var _ Handler = new(setAttributesNode)

type setAttributesNode struct {
	node   Node
	config *SetAttributesConfig
	rt     Runtime
}

func (s *setAttributesNode) Execute(ctx context.Context) (bool, error) {
	data := s.rt.Data()
	attrs := make([]model.Attribute, 0, len(s.config.Attributes))
	for _, attr := range s.config.Attributes {
		resolved := util.ResolveParams(data, map[string]any{"value": attr.Value})
		attr.Value = resolved["value"]
		attrs = append(attrs, attr)
	}
	if err := s.rt.Session().UpdateAttributes(ctx, attrs, s.config.CheckPermission); err != nil {
		return false, err
	}
	if next := s.rt.Graph().FirstChild(s.node.Id); next != "" {
		return false, s.rt.GoToNode(ctx, next)
	}
	return false, nil
}
