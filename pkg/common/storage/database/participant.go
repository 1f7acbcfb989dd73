package database

import (
	"context"
	"time"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

// Participant 参与者仓储
// 扇出失效依赖FindUserIDs给出的当前参与者集合
type Participant interface {
	// Add 批量加入参与者
	Add(ctx context.Context, participants []*model.Participant) error

	// Remove 移除参与者（记录离开时间）
	Remove(ctx context.Context, conversationID, userID string, leftAt time.Time) error

	// Take 取单条参与关系，不存在返回errs.ErrRecordNotFound
	Take(ctx context.Context, conversationID, userID string) (*model.Participant, error)

	// FindUserIDs 会话当前（未离开）参与者的用户ID列表
	FindUserIDs(ctx context.Context, conversationID string) ([]string, error)

	// Find 会话当前参与者的完整记录
	Find(ctx context.Context, conversationID string) ([]*model.Participant, error)

	// SetLastRead 推进用户在会话中的已读锚点
	SetLastRead(ctx context.Context, conversationID, userID string, lastReadAt time.Time) error

	// SetMute 设置用户对会话的免打扰
	SetMute(ctx context.Context, conversationID, userID string, muted bool) error
}
