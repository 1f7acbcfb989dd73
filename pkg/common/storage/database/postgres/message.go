package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openimsdk/tools/errs"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/database"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

const msgColumns = `id, conversation_id, sender_id, content, type,
	coalesce(reply_to_id, ''), coalesce(attachments, '[]'::jsonb), created_at, edited_at, deleted_at`

// NewMsgPostgres 创建消息仓储
func NewMsgPostgres(pool *pgxpool.Pool) database.Msg {
	return &msgPostgres{pool: pool}
}

type msgPostgres struct {
	pool *pgxpool.Pool
}

func (m *msgPostgres) Create(ctx context.Context, msg *model.Message) error {
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return errs.WrapMsg(err, "marshal attachments failed", "messageID", msg.ID)
	}
	_, err = m.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, type, reply_to_id, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, nullif($6, ''), $7, $8)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Type, msg.ReplyToID, attachments, msg.CreatedAt)
	return errs.WrapMsg(err, "insert message failed", "messageID", msg.ID)
}

func (m *msgPostgres) scanMessage(row pgx.Row) (*model.Message, error) {
	var (
		msg         model.Message
		attachments []byte
	)
	err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type,
		&msg.ReplyToID, &attachments, &msg.CreatedAt, &msg.EditedAt, &msg.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrRecordNotFound.WrapMsg("message not found")
		}
		return nil, errs.Wrap(err)
	}
	if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal attachments failed", "messageID", msg.ID)
	}
	return &msg, nil
}

func (m *msgPostgres) queryMessages(ctx context.Context, sql string, args ...any) ([]*model.Message, error) {
	rows, err := m.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer rows.Close()
	var msgs []*model.Message
	for rows.Next() {
		msg, err := m.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, errs.Wrap(rows.Err())
}

func (m *msgPostgres) Take(ctx context.Context, messageID string) (*model.Message, error) {
	return m.scanMessage(m.pool.QueryRow(ctx,
		`SELECT `+msgColumns+` FROM messages WHERE id = $1`, messageID))
}

func (m *msgPostgres) FindRecent(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	return m.queryMessages(ctx, `
		SELECT `+msgColumns+` FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC LIMIT $2`, conversationID, limit)
}

func (m *msgPostgres) FindBefore(ctx context.Context, conversationID string, before time.Time, limit int) ([]*model.Message, error) {
	return m.queryMessages(ctx, `
		SELECT `+msgColumns+` FROM messages
		WHERE conversation_id = $1 AND created_at < $2
		ORDER BY created_at DESC LIMIT $3`, conversationID, before, limit)
}

func (m *msgPostgres) FindAfter(ctx context.Context, conversationID string, afterID string, limit int) ([]*model.Message, error) {
	// after_id游标先解析为该消息的created_at，再做范围查询
	return m.queryMessages(ctx, `
		SELECT `+msgColumns+` FROM messages
		WHERE conversation_id = $1
		  AND created_at > (SELECT created_at FROM messages WHERE id = $2)
		ORDER BY created_at ASC LIMIT $3`, conversationID, afterID, limit)
}

func (m *msgPostgres) Search(ctx context.Context, conversationID, keyword string, limit int) ([]*model.Message, error) {
	return m.queryMessages(ctx, `
		SELECT `+msgColumns+` FROM messages
		WHERE conversation_id = $1 AND deleted_at IS NULL AND content ILIKE '%' || $2 || '%'
		ORDER BY created_at DESC LIMIT $3`, conversationID, keyword, limit)
}

func (m *msgPostgres) TakeLast(ctx context.Context, conversationID string) (*model.Message, error) {
	return m.scanMessage(m.pool.QueryRow(ctx, `
		SELECT `+msgColumns+` FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC LIMIT 1`, conversationID))
}

func (m *msgPostgres) UpdateContent(ctx context.Context, messageID, content string, editedAt time.Time) error {
	tag, err := m.pool.Exec(ctx, `
		UPDATE messages SET content = $2, edited_at = $3 WHERE id = $1 AND deleted_at IS NULL`,
		messageID, content, editedAt)
	if err != nil {
		return errs.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrRecordNotFound.WrapMsg("message not found or deleted", "messageID", messageID)
	}
	return nil
}

func (m *msgPostgres) SoftDelete(ctx context.Context, messageID string, deletedAt time.Time) error {
	tag, err := m.pool.Exec(ctx, `
		UPDATE messages SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		messageID, deletedAt)
	if err != nil {
		return errs.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrRecordNotFound.WrapMsg("message not found or already deleted", "messageID", messageID)
	}
	return nil
}

func (m *msgPostgres) CountUnread(ctx context.Context, conversationID, userID string, lastReadAt time.Time) (int64, error) {
	var count int64
	err := m.pool.QueryRow(ctx, `
		SELECT count(*) FROM messages
		WHERE conversation_id = $1 AND sender_id <> $2 AND created_at > $3 AND deleted_at IS NULL`,
		conversationID, userID, lastReadAt).Scan(&count)
	return count, errs.Wrap(err)
}
