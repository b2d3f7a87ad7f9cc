package model

type DebugEvent struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}
