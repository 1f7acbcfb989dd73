package database

import (
	"context"
	"time"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

// Conversation 会话仓储
type Conversation interface {
	// Create 创建会话
	Create(ctx context.Context, conversation *model.Conversation) error

	// Take 按ID取会话，不存在返回errs.ErrRecordNotFound
	Take(ctx context.Context, conversationID string) (*model.Conversation, error)

	// UpdateByMap 按字段映射更新会话属性
	UpdateByMap(ctx context.Context, conversationID string, args map[string]any) error

	// Touch 把updated_at推进到at，驱动列表按活跃度排序
	Touch(ctx context.Context, conversationID string, at time.Time) error

	// FindByUser 分页取用户参与的会话，按updated_at降序
	// 过滤条件下推到查询本身，总数与当前页都按过滤后的集合计算；
	// convType为空表示不按类型过滤，includeArchived为false时排除已归档会话
	FindByUser(ctx context.Context, userID, convType string, includeArchived bool, page, limit int) (int64, []*model.Conversation, error)
}
