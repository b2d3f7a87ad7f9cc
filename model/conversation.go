package model

import "time"

type Assignee string

const (
	ASSIGNED_TO_NONE  Assignee = ""
	ASSIGNED_TO_BOT   Assignee = "bot"
	ASSIGNED_TO_AGENT Assignee = "agent"
)

type Author string

const (
	AUTHOR_USER  Author = "user"
	AUTHOR_BOT   Author = "bot"
	AUTHOR_AGENT Author = "agent"
)

type ItemType string

const (
	ITEM_MESSAGE      ItemType = "message"
	ITEM_BUTTON_CLICK ItemType = "button_click"
)

type Conversation struct {
	Id         string         `json:"id"`
	UserId     string         `json:"userId"`
	AssignedTo Assignee       `json:"assignedTo"`
	Attributes map[string]any `json:"attributes,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func (c *Conversation) AssignedToAgent() bool {
	return c.AssignedTo == ASSIGNED_TO_AGENT
}

type User struct {
	Id         string         `json:"id"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type Button struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Next  string `json:"next,omitempty"`
}

type ConversationItem struct {
	Id             string    `json:"id"`
	ConversationId string    `json:"conversationId"`
	Author         Author    `json:"author"`
	Type           ItemType  `json:"type"`
	Body           string    `json:"body"`
	Value          string    `json:"value,omitempty"`
	Buttons        []Button  `json:"buttons,omitempty"`
	NodeId         string    `json:"nodeId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
