package redis

import (
	"context"
	"time"

	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/util"
	"go.uber.org/zap"
)

const SESSION_KEY string = "SESSION"
const TOOL_KEY string = "TOOL"

var _ persistence.SessionStorage = new(redisSessionDao)

type redisSessionDao struct {
	*baseDao
	encoderDecoder     util.EncoderDecoder[model.Session]
	toolEncoderDecoder util.EncoderDecoder[model.ToolResponse]
}

func newRedisSessionDao(base *baseDao) *redisSessionDao {
	return &redisSessionDao{
		baseDao:            base,
		encoderDecoder:     util.NewJsonEncoderDecoder[model.Session](),
		toolEncoderDecoder: util.NewJsonEncoderDecoder[model.ToolResponse](),
	}
}

func (rs *redisSessionDao) GetSession(ctx context.Context, conversationId string) (*model.Session, error) {
	sessionStr, err := rs.redisClient.HGet(ctx, rs.getNamespaceKey(SESSION_KEY), conversationId).Result()
	if err != nil {
		return nil, storageError(err)
	}
	session, err := rs.encoderDecoder.Decode([]byte(sessionStr))
	if err != nil {
		return nil, err
	}
	session.Data.Normalize()
	return session, nil
}

func (rs *redisSessionDao) CreateSession(ctx context.Context, session *model.Session) error {
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	data, err := rs.encoderDecoder.Encode(*session)
	if err != nil {
		return err
	}
	created, err := rs.redisClient.HSetNX(ctx, rs.getNamespaceKey(SESSION_KEY), session.ConversationId, string(data)).Result()
	if err != nil {
		logger.Error("error in creating session", zap.String("conversationId", session.ConversationId), zap.Error(err))
		return storageError(err)
	}
	if !created {
		return persistence.StorageLayerError{Message: "session already exists for conversation " + session.ConversationId}
	}
	return nil
}

func (rs *redisSessionDao) UpdateSession(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = time.Now().UTC()
	data, err := rs.encoderDecoder.Encode(*session)
	if err != nil {
		return err
	}
	if err := rs.redisClient.HSet(ctx, rs.getNamespaceKey(SESSION_KEY), session.ConversationId, string(data)).Err(); err != nil {
		logger.Error("error in updating session", zap.String("conversationId", session.ConversationId), zap.Error(err))
		return storageError(err)
	}
	return nil
}

func (rs *redisSessionDao) AttachToolResponse(ctx context.Context, response model.ToolResponse) error {
	if response.CreatedAt.IsZero() {
		response.CreatedAt = time.Now().UTC()
	}
	data, err := rs.toolEncoderDecoder.Encode(response)
	if err != nil {
		return err
	}
	if err := rs.redisClient.RPush(ctx, rs.getNamespaceKey(TOOL_KEY, response.SessionId), string(data)).Err(); err != nil {
		return storageError(err)
	}
	return nil
}

func (rs *redisSessionDao) FindToolResponse(ctx context.Context, sessionId string, toolId string, nodeIds []string) (*model.ToolResponse, error) {
	values, err := rs.redisClient.LRange(ctx, rs.getNamespaceKey(TOOL_KEY, sessionId), 0, -1).Result()
	if err != nil {
		return nil, storageError(err)
	}
	responses, err := util.DecodeAll[model.ToolResponse](rs.toolEncoderDecoder, values)
	if err != nil {
		return nil, err
	}
	return persistence.LatestToolResponse(responses, toolId, nodeIds)
}
