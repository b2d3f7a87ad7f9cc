package analytics

import "sync"

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"
const NOOP_DATA_COLLECTOR DataCollectorType = "NOOP"

type FlowDataCollector interface {
	RecordNodeExecuted(conversationId string, flowId string, nodeId string, nodeType string, visible bool)
	RecordTraversal(conversationId string, flowId string, visited int, status string, reason string)
}

type noopCollector struct{}

func (noopCollector) RecordNodeExecuted(string, string, string, string, bool) {}
func (noopCollector) RecordTraversal(string, string, int, string, string)     {}

var (
	flowCollector FlowDataCollector = noopCollector{}
	mu            sync.RWMutex
)

func InitDataCollector(config DataCollectorConfig) error {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		c, err := NewLogFileDataCollector(config.FileName)
		if err != nil {
			return err
		}
		SetCollector(c)
	default:
		SetCollector(noopCollector{})
	}
	return nil
}

func SetCollector(c FlowDataCollector) {
	mu.Lock()
	defer mu.Unlock()
	flowCollector = c
}

func collector() FlowDataCollector {
	mu.RLock()
	defer mu.RUnlock()
	return flowCollector
}

func RecordNodeExecuted(conversationId string, flowId string, nodeId string, nodeType string, visible bool) {
	collector().RecordNodeExecuted(conversationId, flowId, nodeId, nodeType, visible)
}

func RecordTraversal(conversationId string, flowId string, visited int, status string, reason string) {
	collector().RecordTraversal(conversationId, flowId, visited, status, reason)
}
