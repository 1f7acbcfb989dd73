// Package cache 读路径缓存层的接口定义
// 所有实现都遵循同一失败语义：缓存只能"因缺失而错"，不能"因存在而错"；
// 缓存条目是持久层状态的派生投影，正确性不依赖其存在
package cache

import (
	"context"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

// MsgCache 消息缓存引擎
// 单条消息的独立TTL条目 + 会话维度按created_at毫秒值score排序的时间线；
// 时间线长度有界，每次插入后按score升序淘汰超出部分
type MsgCache interface {
	// CacheMessage 写入单条消息：独立条目 + 时间线成员
	CacheMessage(ctx context.Context, msg *model.CachedMessage) error

	// CacheMessages 批量写入，常用于未命中后的回填
	CacheMessages(ctx context.Context, msgs []*model.CachedMessage) error

	// GetMessage 点查单条消息，未命中返回errs.ErrRecordNotFound
	GetMessage(ctx context.Context, messageID string) (*model.CachedMessage, error)

	// GetConversationMessages 按score降序返回最近limit条
	// before大于0时仅返回created_at严格早于该毫秒值的条目；
	// 未命中返回空切片，调用方必须回退持久层，本调用绝不部分回源
	GetConversationMessages(ctx context.Context, conversationID string, limit int, before int64) ([]*model.CachedMessage, error)

	// DelMessages 删除独立条目
	DelMessages(ctx context.Context, messageIDs ...string) error

	// DelConversationMessages 整体失效会话时间线
	// 编辑/删除不做时间线原地修补，用一次未命中换取不读到陈旧内容
	DelConversationMessages(ctx context.Context, conversationID string) error
}
