package model

import "time"

// 参与者角色
const (
	ParticipantRoleMember = "member"
	ParticipantRoleAdmin  = "admin"
)

// Participant 会话参与者关系
// last_read_at是未读数定义的锚点：未读数 = 会话内created_at晚于last_read_at、
// 非本人发送且未被软删除的消息数量
type Participant struct {
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	Role           string     `json:"role"`
	IsMuted        bool       `json:"is_muted"`
	LastReadAt     time.Time  `json:"last_read_at"`
	JoinedAt       time.Time  `json:"joined_at"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
}
