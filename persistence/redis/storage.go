package redis

import (
	"github.com/mohitkumar/agentflow/persistence"
)

var _ persistence.Storage = new(redisStorage)

type redisStorage struct {
	*redisFlowDao
	*redisSessionDao
	*redisConversationDao
	*redisAttributeDao
	base *baseDao
}

// NewRedisStorage builds every dao over one shared client.
func NewRedisStorage(conf Config) *redisStorage {
	base := newBaseDao(conf)
	return &redisStorage{
		redisFlowDao:         newRedisFlowDao(base),
		redisSessionDao:      newRedisSessionDao(base),
		redisConversationDao: newRedisConversationDao(base),
		redisAttributeDao:    newRedisAttributeDao(base),
		base:                 base,
	}
}

func (r *redisStorage) Close() error {
	return r.base.redisClient.Close()
}
