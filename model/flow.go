package model

import "encoding/json"

// EntryParentId marks the node a flow starts with.
const EntryParentId = "start"

type FlowDefinition struct {
	Id              string           `json:"id"`
	Name            string           `json:"name"`
	Nodes           []NodeDefinition `json:"nodes"`
	ActivationCount int64            `json:"activationCount,omitempty"`
}

type NodeDefinition struct {
	Id       string          `json:"id"`
	Type     string          `json:"type"`
	ParentId string          `json:"parentId"`
	Config   json.RawMessage `json:"config,omitempty"`
}
