// Package database 持久层接口定义
// 关系库是唯一事实来源，写入永不绕过；缓存层只消费这里声明的操作
package database

import (
	"context"
	"time"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

// Msg 消息仓储
type Msg interface {
	// Create 写入新消息
	Create(ctx context.Context, msg *model.Message) error

	// Take 按ID取单条消息，不存在返回errs.ErrRecordNotFound
	Take(ctx context.Context, messageID string) (*model.Message, error)

	// FindRecent 按created_at降序取会话最近limit条（含软删除墓碑）
	FindRecent(ctx context.Context, conversationID string, limit int) ([]*model.Message, error)

	// FindBefore 取created_at严格早于before的最近limit条
	FindBefore(ctx context.Context, conversationID string, before time.Time, limit int) ([]*model.Message, error)

	// FindAfter 取指定消息之后的limit条，按created_at升序
	FindAfter(ctx context.Context, conversationID string, afterID string, limit int) ([]*model.Message, error)

	// Search 会话内全文检索，永不走缓存
	Search(ctx context.Context, conversationID, keyword string, limit int) ([]*model.Message, error)

	// TakeLast 会话最新一条消息，空会话返回errs.ErrRecordNotFound
	TakeLast(ctx context.Context, conversationID string) (*model.Message, error)

	// UpdateContent 编辑消息内容并记录编辑时间
	UpdateContent(ctx context.Context, messageID, content string, editedAt time.Time) error

	// SoftDelete 软删除：打墓碑，不从时间线排序中移除
	SoftDelete(ctx context.Context, messageID string, deletedAt time.Time) error

	// CountUnread 按定义重算未读数：会话内created_at晚于lastReadAt、
	// 非本人发送且未被软删除的消息数量
	CountUnread(ctx context.Context, conversationID, userID string, lastReadAt time.Time) (int64, error)
}
