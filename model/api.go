package model

type MessageRequest struct {
	Body  string   `json:"body"`
	Type  ItemType `json:"type"`
	Value string   `json:"value"`
}

type ActivateFlowRequest struct {
	FlowId string `json:"flowId"`
}

type AssignRequest struct {
	AssignedTo Assignee `json:"assignedTo"`
}

type CreateConversationRequest struct {
	UserId     string         `json:"userId"`
	Attributes map[string]any `json:"attributes"`
}

type ExecutionResult struct {
	ConversationId string             `json:"conversationId"`
	Status         SessionStatus      `json:"status"`
	CurrentNodeId  string             `json:"currentNodeId,omitempty"`
	ActiveFlowId   string             `json:"activeFlowId,omitempty"`
	ExecutedAny    bool               `json:"executedAny"`
	ExecutedNodes  []string           `json:"executedNodes"`
	Items          []ConversationItem `json:"items"`
	Trace          []DebugEvent       `json:"trace,omitempty"`
}
