package cache

import (
	"context"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

// PresenceCache 在线状态与输入中指示的短TTL存储
type PresenceCache interface {
	// SetUserTyping 以当前时间戳为score把用户加入会话输入中集合，
	// 同时给整个集合设置短的绝对过期
	SetUserTyping(ctx context.Context, conversationID, userID string) error

	// GetTypingUsers 先清除score早于"now-窗口"的成员再返回剩余成员
	// 集合级TTL与读取时的score截断双重兜底：前者防闲置堆积，
	// 后者防一个持续被刷新的集合永不过期
	GetTypingUsers(ctx context.Context, conversationID string) ([]string, error)

	// SetUserPresence 写入带TTL的在线状态快照
	SetUserPresence(ctx context.Context, presence *model.PresenceSnapshot) error

	// GetUserPresence 读取快照，未命中返回errs.ErrRecordNotFound
	// 状态的惰性降级由上层按流逝时间完成，这里只负责存取
	GetUserPresence(ctx context.Context, userID string) (*model.PresenceSnapshot, error)
}
