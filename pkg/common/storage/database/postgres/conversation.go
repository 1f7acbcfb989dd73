package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openimsdk/tools/errs"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/database"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

const convColumns = `c.id, c.type, coalesce(c.name, ''), coalesce(c.avatar_url, ''), coalesce(c.team_id, ''),
	c.created_by, c.is_archived, c.created_at, c.updated_at,
	(SELECT count(*) FROM participants p WHERE p.conversation_id = c.id AND p.left_at IS NULL), c.archived_at`

// 允许经UpdateByMap更新的列，防止把任意键拼进SQL
var convUpdatableColumns = map[string]struct{}{
	"name":        {},
	"avatar_url":  {},
	"is_archived": {},
	"archived_at": {},
	"updated_at":  {},
}

// NewConversationPostgres 创建会话仓储
func NewConversationPostgres(pool *pgxpool.Pool) database.Conversation {
	return &conversationPostgres{pool: pool}
}

type conversationPostgres struct {
	pool *pgxpool.Pool
}

func (c *conversationPostgres) Create(ctx context.Context, conversation *model.Conversation) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO conversations (id, type, name, avatar_url, team_id, created_by, is_archived, created_at, updated_at)
		VALUES ($1, $2, nullif($3, ''), nullif($4, ''), nullif($5, ''), $6, $7, $8, $9)`,
		conversation.ID, conversation.Type, conversation.Name, conversation.AvatarURL,
		conversation.TeamID, conversation.CreatedBy, conversation.IsArchived,
		conversation.CreatedAt, conversation.UpdatedAt)
	return errs.WrapMsg(err, "insert conversation failed", "conversationID", conversation.ID)
}

func (c *conversationPostgres) scanConversation(row pgx.Row) (*model.Conversation, error) {
	var conversation model.Conversation
	err := row.Scan(&conversation.ID, &conversation.Type, &conversation.Name, &conversation.AvatarURL,
		&conversation.TeamID, &conversation.CreatedBy, &conversation.IsArchived,
		&conversation.CreatedAt, &conversation.UpdatedAt, &conversation.ParticipantCount, &conversation.ArchivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrRecordNotFound.WrapMsg("conversation not found")
		}
		return nil, errs.Wrap(err)
	}
	return &conversation, nil
}

func (c *conversationPostgres) Take(ctx context.Context, conversationID string) (*model.Conversation, error) {
	return c.scanConversation(c.pool.QueryRow(ctx,
		`SELECT `+convColumns+` FROM conversations c WHERE c.id = $1`, conversationID))
}

func (c *conversationPostgres) UpdateByMap(ctx context.Context, conversationID string, args map[string]any) error {
	if len(args) == 0 {
		return nil
	}
	sets := make([]string, 0, len(args))
	values := make([]any, 0, len(args)+1)
	values = append(values, conversationID)
	for column, value := range args {
		if _, ok := convUpdatableColumns[column]; !ok {
			return errs.ErrArgs.WrapMsg("column not updatable", "column", column)
		}
		values = append(values, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(values)))
	}
	tag, err := c.pool.Exec(ctx,
		`UPDATE conversations SET `+strings.Join(sets, ", ")+` WHERE id = $1`, values...)
	if err != nil {
		return errs.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrRecordNotFound.WrapMsg("conversation not found", "conversationID", conversationID)
	}
	return nil
}

func (c *conversationPostgres) Touch(ctx context.Context, conversationID string, at time.Time) error {
	_, err := c.pool.Exec(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE id = $1 AND updated_at < $2`, conversationID, at)
	return errs.WrapMsg(err, "touch conversation failed", "conversationID", conversationID)
}

func (c *conversationPostgres) FindByUser(ctx context.Context, userID, convType string, includeArchived bool, page, limit int) (int64, []*model.Conversation, error) {
	// 过滤下推到WHERE：总数与页内容必须按同一个集合计算
	const filter = ` AND ($2 = '' OR c.type = $2) AND ($3 OR NOT c.is_archived)`
	var total int64
	err := c.pool.QueryRow(ctx, `
		SELECT count(*) FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1 AND p.left_at IS NULL`+filter,
		userID, convType, includeArchived).Scan(&total)
	if err != nil {
		return 0, nil, errs.Wrap(err)
	}
	if page < 1 {
		page = 1
	}
	rows, err := c.pool.Query(ctx, `
		SELECT `+convColumns+` FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1 AND p.left_at IS NULL`+filter+`
		ORDER BY c.updated_at DESC LIMIT $4 OFFSET $5`,
		userID, convType, includeArchived, limit, (page-1)*limit)
	if err != nil {
		return 0, nil, errs.Wrap(err)
	}
	defer rows.Close()
	var conversations []*model.Conversation
	for rows.Next() {
		conversation, err := c.scanConversation(rows)
		if err != nil {
			return 0, nil, err
		}
		conversations = append(conversations, conversation)
	}
	return total, conversations, errs.Wrap(rows.Err())
}
