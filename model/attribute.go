package model

type AttributeType string

const (
	ATTRIBUTE_USER         AttributeType = "user"
	ATTRIBUTE_CONVERSATION AttributeType = "conversation"
	ATTRIBUTE_SESSION      AttributeType = "session"
)

func (t AttributeType) Valid() bool {
	switch t {
	case ATTRIBUTE_USER, ATTRIBUTE_CONVERSATION, ATTRIBUTE_SESSION:
		return true
	}
	return false
}

type AttributePermission string

const (
	PERMISSION_WRITABLE  AttributePermission = "writable"
	PERMISSION_READ_ONLY AttributePermission = "read_only"
)

type Attribute struct {
	Type  AttributeType `json:"type"`
	Name  string        `json:"name"`
	Value any           `json:"value"`
}

type AttributeDefinition struct {
	Type       AttributeType       `json:"type"`
	Name       string              `json:"name"`
	Permission AttributePermission `json:"permission"`
}
