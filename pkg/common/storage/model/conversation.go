package model

import (
	"sort"
	"time"
)

// 会话类型
const (
	ConversationTypeDirect    = "direct"    // 单聊
	ConversationTypeGroup     = "group"     // 群聊
	ConversationTypeTeam      = "team"      // 球队会话
	ConversationTypeBroadcast = "broadcast" // 教练广播会话
)

// Conversation 持久化会话实体
type Conversation struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	Name             string     `json:"name,omitempty"`
	AvatarURL        string     `json:"avatar_url,omitempty"`
	TeamID           string     `json:"team_id,omitempty"`
	CreatedBy        string     `json:"created_by"`
	IsArchived       bool       `json:"is_archived"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ParticipantCount int        `json:"participant_count"`
	ArchivedAt       *time.Time `json:"archived_at,omitempty"`
}

// ShouldEncrypt 会话是否需要端到端加密
// 该标志不做持久化，按参与者数量和会话类型在读取时重新推导：
// 恰好两人的单聊视为加密会话
func (c *Conversation) ShouldEncrypt() bool {
	return c.Type == ConversationTypeDirect && c.ParticipantCount == 2
}

// ConversationSummary 会话的缓存投影
// 既作为用户会话列表缓存条目的成员，也作为独立条目存在
type ConversationSummary struct {
	ID               string         `json:"id"`
	Type             string         `json:"type"`
	Name             string         `json:"name,omitempty"`
	AvatarURL        string         `json:"avatar_url,omitempty"`
	ParticipantIDs   []string       `json:"participant_ids"`
	ParticipantCount int            `json:"participant_count"`
	LastMessage      *CachedMessage `json:"last_message,omitempty"`
	UnreadCount      int64          `json:"unread_count"`
	IsEncrypted      bool           `json:"is_encrypted"`
	IsArchived       bool           `json:"is_archived"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// ConversationList 单个用户会话列表的缓存条目
// 不变式：列表内按updated_at降序排列；任一成员的原地更新都要重新排序
type ConversationList struct {
	Conversations []*ConversationSummary `json:"conversations"`
	Total         int64                  `json:"total"`
	CachedAt      time.Time              `json:"cached_at"`
}

// Sort 按updated_at降序重排
func (l *ConversationList) Sort() {
	sort.SliceStable(l.Conversations, func(i, j int) bool {
		return l.Conversations[i].UpdatedAt.After(l.Conversations[j].UpdatedAt)
	})
}

// Replace 替换列表中ID匹配的会话并重新排序
// 返回是否找到了匹配的条目；未找到时列表保持原样
func (l *ConversationList) Replace(conversation *ConversationSummary) bool {
	for i, c := range l.Conversations {
		if c.ID == conversation.ID {
			l.Conversations[i] = conversation
			l.Sort()
			return true
		}
	}
	return false
}
