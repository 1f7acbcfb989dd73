package controller

import (
	"context"
	"time"

	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"

	"github.com/Stormrider66/hockey-hub-sub002/internal/push"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

// 惰性降级阈值：快照距last_seen_at超过DefaultAwayAfter判定为away，
// 超过DefaultOfflineAfter判定为offline，不依赖任何后台清理任务
const (
	DefaultAwayAfter    = 5 * time.Minute
	DefaultOfflineAfter = 15 * time.Minute
)

// PresenceDatabase 在线状态与输入中指示协调器
// 唯一没有持久层的子系统：快照丢失等价于离线，永远可以安全重建
type PresenceDatabase interface {
	// UpdatePresence 用户主动上报状态
	UpdatePresence(ctx context.Context, userID, status string) error

	// Heartbeat 心跳刷新：保持online并推进last_seen_at
	Heartbeat(ctx context.Context, userID string) error

	// GetPresence 读取单个用户状态，读取侧按流逝时间重新判定；
	// 快照缺失视为offline而不是错误
	GetPresence(ctx context.Context, userID string) (*model.PresenceSnapshot, error)

	// GetPresences 批量读取
	GetPresences(ctx context.Context, userIDs []string) ([]*model.PresenceSnapshot, error)

	// SetTyping 标记用户正在某会话输入，并通知其余参与者
	SetTyping(ctx context.Context, conversationID, userID string, participantIDs []string) error

	// GetTypingUsers 会话当前输入中的用户
	GetTypingUsers(ctx context.Context, conversationID string) ([]string, error)
}

func NewPresenceDatabase(presenceCache cache.PresenceCache, emitter push.Emitter, awayAfter, offlineAfter time.Duration) PresenceDatabase {
	if awayAfter <= 0 {
		awayAfter = DefaultAwayAfter
	}
	if offlineAfter <= 0 {
		offlineAfter = DefaultOfflineAfter
	}
	return &presenceDatabase{
		presenceCache: presenceCache,
		emitter:       emitter,
		awayAfter:     awayAfter,
		offlineAfter:  offlineAfter,
	}
}

type presenceDatabase struct {
	presenceCache cache.PresenceCache
	emitter       push.Emitter
	awayAfter     time.Duration
	offlineAfter  time.Duration
}

func (db *presenceDatabase) UpdatePresence(ctx context.Context, userID, status string) error {
	switch status {
	case model.PresenceStatusOnline, model.PresenceStatusAway, model.PresenceStatusOffline:
	default:
		return errs.ErrArgs.WrapMsg("unknown presence status", "status", status)
	}
	now := time.Now()
	if err := db.presenceCache.SetUserPresence(ctx, &model.PresenceSnapshot{
		UserID:     userID,
		Status:     status,
		LastSeenAt: now,
		CapturedAt: now,
	}); err != nil {
		return err
	}
	if err := db.emitter.EmitToUser(ctx, userID, push.EventPresenceChanged, map[string]any{
		"user_id": userID,
		"status":  status,
	}); err != nil {
		log.ZWarn(ctx, "emit presence event failed", err, "userID", userID)
	}
	return nil
}

func (db *presenceDatabase) Heartbeat(ctx context.Context, userID string) error {
	now := time.Now()
	return db.presenceCache.SetUserPresence(ctx, &model.PresenceSnapshot{
		UserID:     userID,
		Status:     model.PresenceStatusOnline,
		LastSeenAt: now,
		CapturedAt: now,
	})
}

func (db *presenceDatabase) GetPresence(ctx context.Context, userID string) (*model.PresenceSnapshot, error) {
	snapshot, err := db.presenceCache.GetUserPresence(ctx, userID)
	if err != nil {
		if errs.ErrRecordNotFound.Is(err) {
			return &model.PresenceSnapshot{UserID: userID, Status: model.PresenceStatusOffline}, nil
		}
		return nil, err
	}
	snapshot.Status = snapshot.Reclassify(time.Now(), db.awayAfter, db.offlineAfter)
	return snapshot, nil
}

func (db *presenceDatabase) GetPresences(ctx context.Context, userIDs []string) ([]*model.PresenceSnapshot, error) {
	snapshots := make([]*model.PresenceSnapshot, 0, len(userIDs))
	for _, userID := range userIDs {
		snapshot, err := db.GetPresence(ctx, userID)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func (db *presenceDatabase) SetTyping(ctx context.Context, conversationID, userID string, participantIDs []string) error {
	if err := db.presenceCache.SetUserTyping(ctx, conversationID, userID); err != nil {
		return err
	}
	recipients := make([]string, 0, len(participantIDs))
	for _, participantID := range participantIDs {
		if participantID != userID {
			recipients = append(recipients, participantID)
		}
	}
	if err := db.emitter.EmitToUsers(ctx, recipients, push.EventTyping, map[string]any{
		"conversation_id": conversationID,
		"user_id":         userID,
	}); err != nil {
		log.ZWarn(ctx, "emit typing event failed", err, "conversationID", conversationID)
	}
	return nil
}

func (db *presenceDatabase) GetTypingUsers(ctx context.Context, conversationID string) ([]string, error) {
	return db.presenceCache.GetTypingUsers(ctx, conversationID)
}
