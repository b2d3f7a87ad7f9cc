package analytics

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogFileDataCollector struct {
	fileName string
	logger   *zap.Logger
}

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(fileEncoder, zapcore.AddSync(logFile), zapcore.InfoLevel)
	return &LogFileDataCollector{
		fileName: fileName,
		logger:   zap.New(core),
	}, nil
}

func (lc *LogFileDataCollector) RecordNodeExecuted(conversationId string, flowId string, nodeId string, nodeType string, visible bool) {
	lc.logger.Info("node", zap.String("conversation", conversationId), zap.String("flow", flowId), zap.String("node", nodeId), zap.String("type", nodeType), zap.Bool("visible", visible))
}

func (lc *LogFileDataCollector) RecordTraversal(conversationId string, flowId string, visited int, status string, reason string) {
	lc.logger.Info("traversal", zap.String("conversation", conversationId), zap.String("flow", flowId), zap.Int("visited", visited), zap.String("status", status), zap.String("reason", reason))
}

func (lc *LogFileDataCollector) Sync() error {
	return lc.logger.Sync()
}
