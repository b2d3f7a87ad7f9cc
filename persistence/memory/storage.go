package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/util"
	c "github.com/patrickmn/go-cache"
)

var _ persistence.Storage = new(memoryStorage)

// memoryStorage keeps JSON encoded records in a go-cache so callers never share
// memory with the store.
type memoryStorage struct {
	mu    sync.Mutex
	cache *c.Cache
}

func NewMemoryStorage() *memoryStorage {
	return &memoryStorage{
		cache: c.New(c.NoExpiration, 0),
	}
}

func get[T any](cache *c.Cache, key string) (*T, error) {
	v, found := cache.Get(key)
	if !found {
		return nil, persistence.ErrNotFound
	}
	return util.NewJsonEncoderDecoder[T]().Decode(v.([]byte))
}

func set[T any](cache *c.Cache, key string, value T) error {
	data, err := util.NewJsonEncoderDecoder[T]().Encode(value)
	if err != nil {
		return err
	}
	cache.Set(key, data, c.NoExpiration)
	return nil
}

func appendTo[T any](cache *c.Cache, key string, value T) error {
	data, err := util.NewJsonEncoderDecoder[T]().Encode(value)
	if err != nil {
		return err
	}
	var list []string
	if v, found := cache.Get(key); found {
		list = v.([]string)
	}
	next := make([]string, len(list), len(list)+1)
	copy(next, list)
	cache.Set(key, append(next, string(data)), c.NoExpiration)
	return nil
}

func list[T any](cache *c.Cache, key string) ([]T, error) {
	v, found := cache.Get(key)
	if !found {
		return []T{}, nil
	}
	return util.DecodeAll[T](util.NewJsonEncoderDecoder[T](), v.([]string))
}

func (m *memoryStorage) SaveFlow(ctx context.Context, flow model.FlowDefinition) error {
	return set(m.cache, "flow:"+flow.Id, flow)
}

func (m *memoryStorage) DeleteFlow(ctx context.Context, id string) error {
	m.cache.Delete("flow:" + id)
	m.cache.Delete("flowstats:" + id)
	return nil
}

func (m *memoryStorage) GetFlow(ctx context.Context, id string) (*model.FlowDefinition, error) {
	flow, err := get[model.FlowDefinition](m.cache, "flow:"+id)
	if err != nil {
		return nil, err
	}
	if v, found := m.cache.Get("flowstats:" + id); found {
		flow.ActivationCount = v.(int64)
	}
	return flow, nil
}

func (m *memoryStorage) IncrementActivationCount(ctx context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add("flowstats:"+id, int64(0), c.NoExpiration)
	return m.cache.IncrementInt64("flowstats:"+id, 1)
}

func (m *memoryStorage) GetSession(ctx context.Context, conversationId string) (*model.Session, error) {
	session, err := get[model.Session](m.cache, "session:"+conversationId)
	if err != nil {
		return nil, err
	}
	session.Data.Normalize()
	return session, nil
}

func (m *memoryStorage) CreateSession(ctx context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.cache.Get("session:" + session.ConversationId); found {
		return persistence.StorageLayerError{Message: "session already exists for conversation " + session.ConversationId}
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	return set(m.cache, "session:"+session.ConversationId, *session)
}

func (m *memoryStorage) UpdateSession(ctx context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.cache.Get("session:" + session.ConversationId); !found {
		return persistence.ErrNotFound
	}
	session.UpdatedAt = time.Now().UTC()
	return set(m.cache, "session:"+session.ConversationId, *session)
}

func (m *memoryStorage) AttachToolResponse(ctx context.Context, response model.ToolResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if response.CreatedAt.IsZero() {
		response.CreatedAt = time.Now().UTC()
	}
	return appendTo(m.cache, "tools:"+response.SessionId, response)
}

func (m *memoryStorage) FindToolResponse(ctx context.Context, sessionId string, toolId string, nodeIds []string) (*model.ToolResponse, error) {
	responses, err := list[model.ToolResponse](m.cache, "tools:"+sessionId)
	if err != nil {
		return nil, err
	}
	return persistence.LatestToolResponse(responses, toolId, nodeIds)
}

func (m *memoryStorage) CreateConversation(ctx context.Context, conversation *model.Conversation) error {
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}
	return set(m.cache, "conversation:"+conversation.Id, *conversation)
}

func (m *memoryStorage) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	return get[model.Conversation](m.cache, "conversation:"+id)
}

func (m *memoryStorage) AssignConversation(ctx context.Context, id string, assignee model.Assignee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, err := m.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	conversation.AssignedTo = assignee
	return set(m.cache, "conversation:"+id, *conversation)
}

func (m *memoryStorage) UpdateConversationAttributes(ctx context.Context, id string, attributes map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, err := m.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	conversation.Attributes = persistence.MergeAttributes(conversation.Attributes, attributes)
	return set(m.cache, "conversation:"+id, *conversation)
}

func (m *memoryStorage) GetUser(ctx context.Context, id string) (*model.User, error) {
	return get[model.User](m.cache, "user:"+id)
}

func (m *memoryStorage) UpdateUserAttributes(ctx context.Context, id string, attributes map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.GetUser(ctx, id)
	if err != nil {
		if !persistence.IsNotFound(err) {
			return err
		}
		user = &model.User{Id: id}
	}
	user.Attributes = persistence.MergeAttributes(user.Attributes, attributes)
	return set(m.cache, "user:"+id, *user)
}

func (m *memoryStorage) AppendItem(ctx context.Context, item *model.ConversationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	return appendTo(m.cache, "items:"+item.ConversationId, *item)
}

func (m *memoryStorage) ListItems(ctx context.Context, conversationId string, limit int) ([]model.ConversationItem, error) {
	items, err := list[model.ConversationItem](m.cache, "items:"+conversationId)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		return util.LastN(items, limit), nil
	}
	return items, nil
}

func (m *memoryStorage) SaveAttributeDefinition(ctx context.Context, def model.AttributeDefinition) error {
	return set(m.cache, "attrdef:"+string(def.Type)+":"+def.Name, def)
}

func (m *memoryStorage) GetAttributeDefinitions(ctx context.Context, attrType model.AttributeType) ([]model.AttributeDefinition, error) {
	prefix := "attrdef:" + string(attrType) + ":"
	var keys []string
	for k := range m.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	defs := make([]model.AttributeDefinition, 0, len(keys))
	for _, k := range keys {
		def, err := get[model.AttributeDefinition](m.cache, k)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}
	return defs, nil
}

func (m *memoryStorage) Close() error {
	m.cache.Flush()
	return nil
}
