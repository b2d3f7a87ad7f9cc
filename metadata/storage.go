package metadata

import "github.com/mohitkumar/agentflow/persistence"

type MetadataStorage interface {
	persistence.FlowStorage
	persistence.AttributeStorage
}
