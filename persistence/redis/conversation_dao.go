package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/util"
)

const CONVERSATION_KEY string = "CONVERSATION"
const USER_KEY string = "USER"
const ITEMS_KEY string = "ITEMS"

var _ persistence.ConversationStorage = new(redisConversationDao)

type redisConversationDao struct {
	*baseDao
	conversationEncDec util.EncoderDecoder[model.Conversation]
	userEncDec         util.EncoderDecoder[model.User]
	itemEncDec         util.EncoderDecoder[model.ConversationItem]
}

func newRedisConversationDao(base *baseDao) *redisConversationDao {
	return &redisConversationDao{
		baseDao:            base,
		conversationEncDec: util.NewJsonEncoderDecoder[model.Conversation](),
		userEncDec:         util.NewJsonEncoderDecoder[model.User](),
		itemEncDec:         util.NewJsonEncoderDecoder[model.ConversationItem](),
	}
}

func (rc *redisConversationDao) CreateConversation(ctx context.Context, conversation *model.Conversation) error {
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}
	return rc.saveConversation(ctx, conversation)
}

func (rc *redisConversationDao) saveConversation(ctx context.Context, conversation *model.Conversation) error {
	data, err := rc.conversationEncDec.Encode(*conversation)
	if err != nil {
		return err
	}
	if err := rc.redisClient.HSet(ctx, rc.getNamespaceKey(CONVERSATION_KEY), conversation.Id, string(data)).Err(); err != nil {
		return storageError(err)
	}
	return nil
}

func (rc *redisConversationDao) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	str, err := rc.redisClient.HGet(ctx, rc.getNamespaceKey(CONVERSATION_KEY), id).Result()
	if err != nil {
		return nil, storageError(err)
	}
	return rc.conversationEncDec.Decode([]byte(str))
}

func (rc *redisConversationDao) AssignConversation(ctx context.Context, id string, assignee model.Assignee) error {
	conversation, err := rc.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	conversation.AssignedTo = assignee
	return rc.saveConversation(ctx, conversation)
}

func (rc *redisConversationDao) UpdateConversationAttributes(ctx context.Context, id string, attributes map[string]any) error {
	conversation, err := rc.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	conversation.Attributes = persistence.MergeAttributes(conversation.Attributes, attributes)
	return rc.saveConversation(ctx, conversation)
}

func (rc *redisConversationDao) GetUser(ctx context.Context, id string) (*model.User, error) {
	str, err := rc.redisClient.HGet(ctx, rc.getNamespaceKey(USER_KEY), id).Result()
	if err != nil {
		return nil, storageError(err)
	}
	return rc.userEncDec.Decode([]byte(str))
}

func (rc *redisConversationDao) UpdateUserAttributes(ctx context.Context, id string, attributes map[string]any) error {
	user, err := rc.GetUser(ctx, id)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return err
		}
		user = &model.User{Id: id}
	}
	user.Attributes = persistence.MergeAttributes(user.Attributes, attributes)
	data, err := rc.userEncDec.Encode(*user)
	if err != nil {
		return err
	}
	if err := rc.redisClient.HSet(ctx, rc.getNamespaceKey(USER_KEY), id, string(data)).Err(); err != nil {
		return storageError(err)
	}
	return nil
}

func (rc *redisConversationDao) AppendItem(ctx context.Context, item *model.ConversationItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	data, err := rc.itemEncDec.Encode(*item)
	if err != nil {
		return err
	}
	if err := rc.redisClient.RPush(ctx, rc.getNamespaceKey(ITEMS_KEY, item.ConversationId), string(data)).Err(); err != nil {
		return storageError(err)
	}
	return nil
}

func (rc *redisConversationDao) ListItems(ctx context.Context, conversationId string, limit int) ([]model.ConversationItem, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	values, err := rc.redisClient.LRange(ctx, rc.getNamespaceKey(ITEMS_KEY, conversationId), start, -1).Result()
	if err != nil && !errors.Is(err, rd.Nil) {
		return nil, storageError(err)
	}
	return util.DecodeAll[model.ConversationItem](rc.itemEncDec, values)
}
