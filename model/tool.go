package model

import "time"

type ToolResponse struct {
	SessionId string         `json:"sessionId"`
	NodeId    string         `json:"nodeId"`
	ToolId    string         `json:"toolId"`
	Response  map[string]any `json:"response"`
	Failed    bool           `json:"failed"`
	CreatedAt time.Time      `json:"createdAt"`
}
