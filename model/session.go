package model

import "time"

type SessionStatus string

const (
	SESSION_IDLE                   SessionStatus = "idle"
	SESSION_ACTIVE                 SessionStatus = "active"
	SESSION_WAITING_FOR_USER_INPUT SessionStatus = "waiting_for_user_input"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SESSION_IDLE, SESSION_ACTIVE, SESSION_WAITING_FOR_USER_INPUT:
		return true
	}
	return false
}

// SessionDataVersion is bumped whenever the persisted shape of SessionData changes.
const SessionDataVersion = 1

// SessionData is the persisted execution state of a session.
// CurrentNodeId is empty when no traversal is in progress. NodeData is a
// per-node scratch table owned by node handlers, Custom holds flow level
// values such as collected answers and session attributes.
type SessionData struct {
	Version       int                       `json:"version"`
	CurrentNodeId string                    `json:"currentNodeId,omitempty"`
	NodeData      map[string]map[string]any `json:"nodeData,omitempty"`
	Custom        map[string]any            `json:"custom,omitempty"`
}

func NewSessionData() SessionData {
	return SessionData{
		Version:  SessionDataVersion,
		NodeData: make(map[string]map[string]any),
		Custom:   make(map[string]any),
	}
}

// Normalize fills the maps of data decoded from storage.
func (d *SessionData) Normalize() {
	if d.Version == 0 {
		d.Version = SessionDataVersion
	}
	if d.NodeData == nil {
		d.NodeData = make(map[string]map[string]any)
	}
	if d.Custom == nil {
		d.Custom = make(map[string]any)
	}
}

func (d SessionData) Clone() SessionData {
	out := SessionData{
		Version:       d.Version,
		CurrentNodeId: d.CurrentNodeId,
		NodeData:      make(map[string]map[string]any, len(d.NodeData)),
		Custom:        make(map[string]any, len(d.Custom)),
	}
	for k, v := range d.NodeData {
		inner := make(map[string]any, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		out.NodeData[k] = inner
	}
	for k, v := range d.Custom {
		out.Custom[k] = v
	}
	return out
}

type Session struct {
	Id             string        `json:"id"`
	ConversationId string        `json:"conversationId"`
	Status         SessionStatus `json:"status"`
	ActiveFlowId   string        `json:"activeFlowId,omitempty"`
	Data           SessionData   `json:"context"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}
