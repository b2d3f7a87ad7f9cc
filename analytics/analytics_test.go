package analytics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogFileDataCollector(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "analytics.log")
	require.NoError(t, InitDataCollector(DataCollectorConfig{FileName: fileName, CollectorType: LOG_FILE_DATA_COLLECTOR}))
	defer SetCollector(noopCollector{})

	RecordNodeExecuted("c1", "f1", "n1", "message", true)
	RecordTraversal("c1", "f1", 2, "idle", "")
	require.NoError(t, collector().(*LogFileDataCollector).Sync())

	data, err := os.ReadFile(fileName)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"node":"n1"`)
	require.Contains(t, lines[1], `"visited":2`)
}

func TestNoopCollectorByDefault(t *testing.T) {
	require.NoError(t, InitDataCollector(DataCollectorConfig{}))
	RecordNodeExecuted("c1", "f1", "n1", "message", true)
	_, ok := collector().(noopCollector)
	require.True(t, ok)
}
