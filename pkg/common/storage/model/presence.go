package model

import "time"

// 在线状态
const (
	PresenceStatusOnline  = "online"
	PresenceStatusAway    = "away"
	PresenceStatusOffline = "offline"
)

// PresenceSnapshot 用户在线状态快照
// 生命周期：每次状态上报或心跳时创建/刷新；读取时仅按已流逝时间
// 做惰性降级（online→away→offline），不依赖任何主动清理任务
type PresenceSnapshot struct {
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CapturedAt time.Time `json:"captured_at"`
}

// Reclassify 按流逝时间重新判定状态
// now与last_seen_at的差超过awayAfter降为away，超过offlineAfter降为offline；
// 快照本身不修改，返回判定后的状态值
func (p *PresenceSnapshot) Reclassify(now time.Time, awayAfter, offlineAfter time.Duration) string {
	if p.Status == PresenceStatusOffline {
		return PresenceStatusOffline
	}
	elapsed := now.Sub(p.LastSeenAt)
	switch {
	case elapsed >= offlineAfter:
		return PresenceStatusOffline
	case elapsed >= awayAfter:
		return PresenceStatusAway
	default:
		return p.Status
	}
}
