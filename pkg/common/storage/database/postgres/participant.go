package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openimsdk/tools/errs"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/database"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

const participantColumns = `conversation_id, user_id, role, is_muted, last_read_at, joined_at, left_at`

// NewParticipantPostgres 创建参与者仓储
func NewParticipantPostgres(pool *pgxpool.Pool) database.Participant {
	return &participantPostgres{pool: pool}
}

type participantPostgres struct {
	pool *pgxpool.Pool
}

func (p *participantPostgres) Add(ctx context.Context, participants []*model.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, participant := range participants {
		// 重新加入时复用原行并清掉left_at，已读锚点重置为加入时刻
		batch.Queue(`
			INSERT INTO participants (conversation_id, user_id, role, is_muted, last_read_at, joined_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (conversation_id, user_id) DO UPDATE
			SET role = excluded.role, is_muted = excluded.is_muted,
			    last_read_at = excluded.last_read_at, joined_at = excluded.joined_at, left_at = NULL`,
			participant.ConversationID, participant.UserID, participant.Role,
			participant.IsMuted, participant.LastReadAt, participant.JoinedAt)
	}
	return errs.WrapMsg(p.pool.SendBatch(ctx, batch).Close(), "add participants failed")
}

func (p *participantPostgres) Remove(ctx context.Context, conversationID, userID string, leftAt time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE participants SET left_at = $3
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL`,
		conversationID, userID, leftAt)
	if err != nil {
		return errs.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrRecordNotFound.WrapMsg("participant not found", "conversationID", conversationID, "userID", userID)
	}
	return nil
}

func (p *participantPostgres) scanParticipant(row pgx.Row) (*model.Participant, error) {
	var participant model.Participant
	err := row.Scan(&participant.ConversationID, &participant.UserID, &participant.Role,
		&participant.IsMuted, &participant.LastReadAt, &participant.JoinedAt, &participant.LeftAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrRecordNotFound.WrapMsg("participant not found")
		}
		return nil, errs.Wrap(err)
	}
	return &participant, nil
}

func (p *participantPostgres) Take(ctx context.Context, conversationID, userID string) (*model.Participant, error) {
	return p.scanParticipant(p.pool.QueryRow(ctx, `
		SELECT `+participantColumns+` FROM participants
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL`, conversationID, userID))
}

func (p *participantPostgres) FindUserIDs(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT user_id FROM participants
		WHERE conversation_id = $1 AND left_at IS NULL`, conversationID)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer rows.Close()
	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, errs.Wrap(err)
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, errs.Wrap(rows.Err())
}

func (p *participantPostgres) Find(ctx context.Context, conversationID string) ([]*model.Participant, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+participantColumns+` FROM participants
		WHERE conversation_id = $1 AND left_at IS NULL
		ORDER BY joined_at ASC`, conversationID)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer rows.Close()
	var participants []*model.Participant
	for rows.Next() {
		participant, err := p.scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}
	return participants, errs.Wrap(rows.Err())
}

func (p *participantPostgres) SetLastRead(ctx context.Context, conversationID, userID string, lastReadAt time.Time) error {
	// 锚点只前进不后退，晚到的标记已读请求是幂等的
	_, err := p.pool.Exec(ctx, `
		UPDATE participants SET last_read_at = $3
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL AND last_read_at < $3`,
		conversationID, userID, lastReadAt)
	return errs.Wrap(err)
}

func (p *participantPostgres) SetMute(ctx context.Context, conversationID, userID string, muted bool) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE participants SET is_muted = $3
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL`,
		conversationID, userID, muted)
	if err != nil {
		return errs.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrRecordNotFound.WrapMsg("participant not found", "conversationID", conversationID, "userID", userID)
	}
	return nil
}
