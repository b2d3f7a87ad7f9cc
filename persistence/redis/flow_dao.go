package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/util"
	"go.uber.org/zap"
)

const FLOW_KEY string = "FLOW"
const FLOW_STATS_KEY string = "FLOW_STATS"

var _ persistence.FlowStorage = new(redisFlowDao)

type redisFlowDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.FlowDefinition]
}

func newRedisFlowDao(base *baseDao) *redisFlowDao {
	return &redisFlowDao{
		baseDao:        base,
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowDefinition](),
	}
}

func (rf *redisFlowDao) SaveFlow(ctx context.Context, flow model.FlowDefinition) error {
	data, err := rf.encoderDecoder.Encode(flow)
	if err != nil {
		return err
	}
	key := rf.getNamespaceKey(FLOW_KEY)
	if err := rf.redisClient.HSet(ctx, key, flow.Id, string(data)).Err(); err != nil {
		logger.Error("error in saving flow", zap.String("flowId", flow.Id), zap.Error(err))
		return storageError(err)
	}
	return nil
}

func (rf *redisFlowDao) DeleteFlow(ctx context.Context, id string) error {
	_, err := rf.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HDel(ctx, rf.getNamespaceKey(FLOW_KEY), id)
		pipe.HDel(ctx, rf.getNamespaceKey(FLOW_STATS_KEY), id)
		return nil
	})
	if err != nil {
		return storageError(err)
	}
	return nil
}

func (rf *redisFlowDao) GetFlow(ctx context.Context, id string) (*model.FlowDefinition, error) {
	flowStr, err := rf.redisClient.HGet(ctx, rf.getNamespaceKey(FLOW_KEY), id).Result()
	if err != nil {
		return nil, storageError(err)
	}
	flow, err := rf.encoderDecoder.Decode([]byte(flowStr))
	if err != nil {
		return nil, err
	}
	count, err := rf.redisClient.HGet(ctx, rf.getNamespaceKey(FLOW_STATS_KEY), id).Int64()
	if err != nil && !errors.Is(err, rd.Nil) {
		return nil, storageError(err)
	}
	flow.ActivationCount = count
	return flow, nil
}

func (rf *redisFlowDao) IncrementActivationCount(ctx context.Context, id string) (int64, error) {
	count, err := rf.redisClient.HIncrBy(ctx, rf.getNamespaceKey(FLOW_STATS_KEY), id, 1).Result()
	if err != nil {
		return 0, storageError(err)
	}
	return count, nil
}
