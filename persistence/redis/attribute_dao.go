package redis

import (
	"context"

	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/util"
)

const ATTRIBUTE_DEF_KEY string = "ATTRIBUTE_DEF"

var _ persistence.AttributeStorage = new(redisAttributeDao)

type redisAttributeDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.AttributeDefinition]
}

func newRedisAttributeDao(base *baseDao) *redisAttributeDao {
	return &redisAttributeDao{
		baseDao:        base,
		encoderDecoder: util.NewJsonEncoderDecoder[model.AttributeDefinition](),
	}
}

func (ra *redisAttributeDao) SaveAttributeDefinition(ctx context.Context, def model.AttributeDefinition) error {
	data, err := ra.encoderDecoder.Encode(def)
	if err != nil {
		return err
	}
	key := ra.getNamespaceKey(ATTRIBUTE_DEF_KEY, string(def.Type))
	if err := ra.redisClient.HSet(ctx, key, def.Name, string(data)).Err(); err != nil {
		return storageError(err)
	}
	return nil
}

func (ra *redisAttributeDao) GetAttributeDefinitions(ctx context.Context, attrType model.AttributeType) ([]model.AttributeDefinition, error) {
	values, err := ra.redisClient.HGetAll(ctx, ra.getNamespaceKey(ATTRIBUTE_DEF_KEY, string(attrType))).Result()
	if err != nil {
		return nil, storageError(err)
	}
	defs := make([]model.AttributeDefinition, 0, len(values))
	for _, v := range values {
		def, err := ra.encoderDecoder.Decode([]byte(v))
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}
	return defs, nil
}
