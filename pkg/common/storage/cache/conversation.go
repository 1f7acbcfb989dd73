package cache

import (
	"context"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

// ConversationCache 会话列表缓存 + 未读计数缓存
// 两者都是TTL约束下的近似值：冷缓存永远触发保正确性的持久层回退再回填；
// 任何接口都不得返回部分失效或部分写入状态推导出的列表或计数
type ConversationCache interface {
	// SetUserConversationList 缓存用户的完整会话列表
	// 列表整体与每个会话摘要各自独立写入，共用同一短TTL
	SetUserConversationList(ctx context.Context, userID string, list *model.ConversationList) error

	// GetUserConversationList 原样返回缓存列表，未命中返回errs.ErrRecordNotFound
	// 绝不用部分持久层数据拼接结果
	GetUserConversationList(ctx context.Context, userID string) (*model.ConversationList, error)

	// UpdateConversationInList 点更新单个用户缓存列表中的一个会话
	// 列表未缓存时静默no-op，避免用局部更新复活一份陈旧的完整列表
	UpdateConversationInList(ctx context.Context, userID string, conversation *model.ConversationSummary) error

	// DelUserConversationLists 批量删除用户列表缓存（写操作的扇出失效入口）
	DelUserConversationLists(ctx context.Context, userIDs ...string) error

	// GetConversation 会话摘要独立条目，未命中经由fn回源并回填
	GetConversation(ctx context.Context, conversationID string, fn func(ctx context.Context) (*model.ConversationSummary, error)) (*model.ConversationSummary, error)

	// DelConversation 失效会话摘要独立条目
	DelConversation(ctx context.Context, conversationIDs ...string) error

	// SetUnreadCount 写入(会话,用户)未读计数
	SetUnreadCount(ctx context.Context, conversationID, userID string, count int64) error

	// GetUnreadCount 读取未读计数，键不存在返回errs.ErrRecordNotFound
	// 缺失语义是"未知，需重算"，不是零
	GetUnreadCount(ctx context.Context, conversationID, userID string) (int64, error)

	// IncrUnreadCount 原子自增，并发发送方不会丢失增量
	IncrUnreadCount(ctx context.Context, conversationID, userID string) (int64, error)

	// ResetUnreadCount 标记已读时直接删除键而不是置零
	// 新消息到来前若有读取会被强制与持久层对账
	ResetUnreadCount(ctx context.Context, conversationID, userID string) error
}
