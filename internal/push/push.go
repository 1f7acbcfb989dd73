// Package push 写路径完成后的事件出口
// 缓存协调器只负责把事件交给Emitter，实时下发（websocket网关、
// 离线推送）由订阅事件主题的下游服务完成
package push

import (
	"context"
	"time"
)

// 事件类型
const (
	EventNewMessage          = "new_message"
	EventMessageEdited       = "message_edited"
	EventMessageDeleted      = "message_deleted"
	EventMessageRead         = "message_read"
	EventConversationUpdated = "conversation_updated"
	EventTyping              = "typing"
	EventPresenceChanged     = "presence_changed"
)

// Event 发往下游的事件信封
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Emitter 事件发射器
// 实现必须自行保证失败不影响调用方：写路径把事件发射视为
// 尽力而为的通知，不是事务的一部分
type Emitter interface {
	// EmitToUser 给单个用户发事件
	EmitToUser(ctx context.Context, userID, event string, payload any) error

	// EmitToUsers 给一批用户发同一事件（消息扇出）
	EmitToUsers(ctx context.Context, userIDs []string, event string, payload any) error

	// Close 释放底层连接
	Close() error
}
