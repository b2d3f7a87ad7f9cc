package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/util"
	_ "modernc.org/sqlite"
)

var _ persistence.Storage = new(sqliteStorage)

type sqliteStorage struct {
	db             *sql.DB
	flowEncDec     util.EncoderDecoder[model.FlowDefinition]
	dataEncDec     util.EncoderDecoder[model.SessionData]
	itemEncDec     util.EncoderDecoder[model.ConversationItem]
	mapEncDec      util.EncoderDecoder[map[string]any]
}

// NewSqliteStorage opens (creating when needed) the database at path.
// ":memory:" keeps everything in process.
func NewSqliteStorage(path string) (*sqliteStorage, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &sqliteStorage{
		db:             db,
		flowEncDec:     util.NewJsonEncoderDecoder[model.FlowDefinition](),
		dataEncDec:     util.NewJsonEncoderDecoder[model.SessionData](),
		itemEncDec:     util.NewJsonEncoderDecoder[model.ConversationItem](),
		mapEncDec:      util.NewJsonEncoderDecoder[map[string]any](),
	}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *sqliteStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS flows (
		id TEXT PRIMARY KEY,
		definition TEXT NOT NULL,
		activation_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS ai_agent_sessions (
		conversation_id TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		status TEXT NOT NULL,
		active_flow_id TEXT,
		context TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS tool_responses (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		node_id TEXT NOT NULL,
		tool_id TEXT NOT NULL,
		response TEXT NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tool_responses_session ON tool_responses(session_id, tool_id);
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		assigned_to TEXT NOT NULL DEFAULT '',
		attributes TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		attributes TEXT NOT NULL DEFAULT '{}'
	);
	CREATE TABLE IF NOT EXISTS conversation_items (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		item TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_items_conversation ON conversation_items(conversation_id, seq);
	CREATE TABLE IF NOT EXISTS attribute_definitions (
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		permission TEXT NOT NULL,
		PRIMARY KEY (type, name)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func storageError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	return persistence.StorageLayerError{Message: err.Error()}
}

func (s *sqliteStorage) SaveFlow(ctx context.Context, flow model.FlowDefinition) error {
	data, err := s.flowEncDec.Encode(flow)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flows (id, definition) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET definition = excluded.definition`, flow.Id, string(data))
	if err != nil {
		return storageError(err)
	}
	return nil
}

func (s *sqliteStorage) DeleteFlow(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id); err != nil {
		return storageError(err)
	}
	return nil
}

func (s *sqliteStorage) GetFlow(ctx context.Context, id string) (*model.FlowDefinition, error) {
	var definition string
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT definition, activation_count FROM flows WHERE id = ?`, id).Scan(&definition, &count)
	if err != nil {
		return nil, storageError(err)
	}
	flow, err := s.flowEncDec.Decode([]byte(definition))
	if err != nil {
		return nil, err
	}
	flow.ActivationCount = count
	return flow, nil
}

func (s *sqliteStorage) IncrementActivationCount(ctx context.Context, id string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE flows SET activation_count = activation_count + 1 WHERE id = ?
		RETURNING activation_count`, id).Scan(&count)
	if err != nil {
		return 0, storageError(err)
	}
	return count, nil
}

func (s *sqliteStorage) GetSession(ctx context.Context, conversationId string) (*model.Session, error) {
	var session model.Session
	var status, sessionCtx string
	var activeFlow sql.NullString
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, active_flow_id, context, created_at, updated_at
		FROM ai_agent_sessions WHERE conversation_id = ?`, conversationId).
		Scan(&session.Id, &status, &activeFlow, &sessionCtx, &createdAt, &updatedAt)
	if err != nil {
		return nil, storageError(err)
	}
	data, err := s.dataEncDec.Decode([]byte(sessionCtx))
	if err != nil {
		return nil, err
	}
	data.Normalize()
	session.ConversationId = conversationId
	session.Status = model.SessionStatus(status)
	session.ActiveFlowId = activeFlow.String
	session.Data = *data
	session.CreatedAt = time.UnixMilli(createdAt).UTC()
	session.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &session, nil
}

func (s *sqliteStorage) CreateSession(ctx context.Context, session *model.Session) error {
	data, err := s.dataEncDec.Encode(session.Data)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ai_agent_sessions (conversation_id, id, status, active_flow_id, context, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ConversationId, session.Id, string(session.Status), nullString(session.ActiveFlowId), string(data), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return storageError(err)
	}
	return nil
}

func (s *sqliteStorage) UpdateSession(ctx context.Context, session *model.Session) error {
	data, err := s.dataEncDec.Encode(session.Data)
	if err != nil {
		return err
	}
	session.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE ai_agent_sessions SET status = ?, active_flow_id = ?, context = ?, updated_at = ?
		WHERE conversation_id = ?`,
		string(session.Status), nullString(session.ActiveFlowId), string(data), session.UpdatedAt.UnixMilli(), session.ConversationId)
	if err != nil {
		return storageError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (s *sqliteStorage) AttachToolResponse(ctx context.Context, response model.ToolResponse) error {
	data, err := s.mapEncDec.Encode(response.Response)
	if err != nil {
		return err
	}
	if response.CreatedAt.IsZero() {
		response.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tool_responses (session_id, node_id, tool_id, response, failed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		response.SessionId, response.NodeId, response.ToolId, string(data), boolToInt(response.Failed), response.CreatedAt.UnixMilli())
	if err != nil {
		return storageError(err)
	}
	return nil
}

func (s *sqliteStorage) FindToolResponse(ctx context.Context, sessionId string, toolId string, nodeIds []string) (*model.ToolResponse, error) {
	if len(nodeIds) == 0 {
		return nil, persistence.ErrNotFound
	}
	args := []any{sessionId, toolId}
	for _, id := range nodeIds {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(nodeIds)), ",")
	query := fmt.Sprintf(`
		SELECT node_id, response, failed, created_at FROM tool_responses
		WHERE session_id = ? AND tool_id = ? AND node_id IN (%s)
		ORDER BY seq DESC LIMIT 1`, placeholders)
	var res model.ToolResponse
	var response string
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&res.NodeId, &response, &res.Failed, &createdAt)
	if err != nil {
		return nil, storageError(err)
	}
	decoded, err := s.mapEncDec.Decode([]byte(response))
	if err != nil {
		return nil, err
	}
	res.SessionId = sessionId
	res.ToolId = toolId
	res.Response = *decoded
	res.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &res, nil
}

func (s *sqliteStorage) CreateConversation(ctx context.Context, conversation *model.Conversation) error {
	attrs, err := s.mapEncDec.Encode(conversation.Attributes)
	if err != nil {
		return err
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, assigned_to, attributes, created_at) VALUES (?, ?, ?, ?, ?)`,
		conversation.Id, conversation.UserId, string(conversation.AssignedTo), string(attrs), conversation.CreatedAt.UnixMilli())
	if err != nil {
		return storageError(err)
	}
	return nil
}

func (s *sqliteStorage) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conversation model.Conversation
	var assignedTo, attrs string
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, assigned_to, attributes, created_at FROM conversations WHERE id = ?`, id).
		Scan(&conversation.UserId, &assignedTo, &attrs, &createdAt)
	if err != nil {
		return nil, storageError(err)
	}
	decoded, err := s.mapEncDec.Decode([]byte(attrs))
	if err != nil {
		return nil, err
	}
	conversation.Id = id
	conversation.AssignedTo = model.Assignee(assignedTo)
	conversation.Attributes = *decoded
	conversation.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &conversation, nil
}

func (s *sqliteStorage) AssignConversation(ctx context.Context, id string, assignee model.Assignee) error {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET assigned_to = ? WHERE id = ?`, string(assignee), id)
	if err != nil {
		return storageError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (s *sqliteStorage) UpdateConversationAttributes(ctx context.Context, id string, attributes map[string]any) error {
	return s.mergeAttributes(ctx, "conversations", id, attributes, false)
}

func (s *sqliteStorage) GetUser(ctx context.Context, id string) (*model.User, error) {
	var attrs string
	if err := s.db.QueryRowContext(ctx, `SELECT attributes FROM users WHERE id = ?`, id).Scan(&attrs); err != nil {
		return nil, storageError(err)
	}
	decoded, err := s.mapEncDec.Decode([]byte(attrs))
	if err != nil {
		return nil, err
	}
	return &model.User{Id: id, Attributes: *decoded}, nil
}

func (s *sqliteStorage) UpdateUserAttributes(ctx context.Context, id string, attributes map[string]any) error {
	return s.mergeAttributes(ctx, "users", id, attributes, true)
}

// mergeAttributes read-modify-writes the attributes column of table inside a transaction.
func (s *sqliteStorage) mergeAttributes(ctx context.Context, table string, id string, attributes map[string]any, upsert bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError(err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT attributes FROM %s WHERE id = ?`, table), id).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows) && upsert:
		current = "{}"
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, attributes) VALUES (?, '{}')`, table), id); err != nil {
			return storageError(err)
		}
	case err != nil:
		return storageError(err)
	}
	decoded, err := s.mapEncDec.Decode([]byte(current))
	if err != nil {
		return err
	}
	merged, err := s.mapEncDec.Encode(persistence.MergeAttributes(*decoded, attributes))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET attributes = ? WHERE id = ?`, table), string(merged), id); err != nil {
		return storageError(err)
	}
	if err := tx.Commit(); err != nil {
		return storageError(err)
	}
	return nil
}

func (s *sqliteStorage) AppendItem(ctx context.Context, item *model.ConversationItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	data, err := s.itemEncDec.Encode(*item)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO conversation_items (conversation_id, item) VALUES (?, ?)`, item.ConversationId, string(data)); err != nil {
		return storageError(err)
	}
	return nil
}

func (s *sqliteStorage) ListItems(ctx context.Context, conversationId string, limit int) ([]model.ConversationItem, error) {
	query := `SELECT item FROM (
		SELECT seq, item FROM conversation_items WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?
	) ORDER BY seq ASC`
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, query, conversationId, limit)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, storageError(err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}
	return util.DecodeAll[model.ConversationItem](s.itemEncDec, values)
}

func (s *sqliteStorage) SaveAttributeDefinition(ctx context.Context, def model.AttributeDefinition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attribute_definitions (type, name, permission) VALUES (?, ?, ?)
		ON CONFLICT(type, name) DO UPDATE SET permission = excluded.permission`,
		string(def.Type), def.Name, string(def.Permission))
	if err != nil {
		return storageError(err)
	}
	return nil
}

func (s *sqliteStorage) GetAttributeDefinitions(ctx context.Context, attrType model.AttributeType) ([]model.AttributeDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, permission FROM attribute_definitions WHERE type = ? ORDER BY name`, string(attrType))
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()
	defs := []model.AttributeDefinition{}
	for rows.Next() {
		def := model.AttributeDefinition{Type: attrType}
		var permission string
		if err := rows.Scan(&def.Name, &permission); err != nil {
			return nil, storageError(err)
		}
		def.Permission = model.AttributePermission(permission)
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
