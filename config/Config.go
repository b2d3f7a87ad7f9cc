package config

import (
	"github.com/mohitkumar/agentflow/analytics"
)

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_SQLITE StorageType = "sqlite"
const STORAGE_TYPE_INMEM StorageType = "memory"

// Defaults for the traversal guards of the flow executor.
const DEFAULT_MAX_NODE_VISITS = 200
const DEFAULT_MAX_REDIRECT_REPEATS = 2

type Config struct {
	RedisConfig     RedisStorageConfig
	SqliteConfig    SqliteStorageConfig
	HttpPort        int
	StorageType     StorageType
	ExecutorConfig  ExecutorConfig
	StreamConfig    StreamConfig
	AnalyticsConfig analytics.DataCollectorConfig
	LogLevel        string
}

type ExecutorConfig struct {
	MaxNodeVisits      int
	MaxRedirectRepeats int
	// DebugTrace adds the traversal trace to execution results.
	DebugTrace bool
}

type StreamConfig struct {
	BufferSize   int
	PingInterval int
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
	Password  string
}

type SqliteStorageConfig struct {
	Path string
}

func (c ExecutorConfig) WithDefaults() ExecutorConfig {
	if c.MaxNodeVisits <= 0 {
		c.MaxNodeVisits = DEFAULT_MAX_NODE_VISITS
	}
	if c.MaxRedirectRepeats <= 0 {
		c.MaxRedirectRepeats = DEFAULT_MAX_REDIRECT_REPEATS
	}
	return c
}
