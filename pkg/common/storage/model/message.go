// Package model 通信模块的存储模型定义
// 持久化实体由关系库负责，Cached*投影是其派生的可丢弃副本
package model

import "time"

// 消息类型
const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeFile     = "file"
	MessageTypeVoice    = "voice"
	MessageTypeVideo    = "video"
	MessageTypeLocation = "location"
	MessageTypeSystem   = "system"
)

// Message 持久化消息实体
// 身份不可变；内容与时间戳可原地修改（编辑），删除为软删除（墓碑），
// 物理上永不从时间线排序中移除
type Message struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversation_id"`
	SenderID       string              `json:"sender_id"`
	Content        string              `json:"content"`
	Type           string              `json:"type"`
	ReplyToID      string              `json:"reply_to_id,omitempty"` // 可选的被回复消息ID
	Attachments    []MessageAttachment `json:"attachments,omitempty"`
	Reactions      []MessageReaction   `json:"reactions,omitempty"`
	ReadReceipts   []ReadReceipt       `json:"read_receipts,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	EditedAt       *time.Time          `json:"edited_at,omitempty"`
	DeletedAt      *time.Time          `json:"deleted_at,omitempty"`
}

// IsDeleted 是否为软删除墓碑
func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// MessageAttachment 消息附件元数据
type MessageAttachment struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
	URL      string `json:"url"`
}

// MessageReaction 消息表情回应
type MessageReaction struct {
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReadReceipt 消息已读回执
type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// CachedMessage 消息的缓存投影
// 同时以两种形态存在：带TTL的独立条目 + 会话时间线有序集合的成员，
// score为创建时间的毫秒时间戳
type CachedMessage struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	Type           string     `json:"type"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Score 时间线有序集合中的排序score
// 并发写入方以相同的created_at值写入即可得到正确交错的顺序，
// 与缓存写入到达顺序无关
func (m *CachedMessage) Score() float64 {
	return float64(m.CreatedAt.UnixMilli())
}

// NewCachedMessage 从持久化消息构造缓存投影
// 显式的映射函数，输入输出类型固定，不做动态形状转换
func NewCachedMessage(msg *Message) *CachedMessage {
	return &CachedMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Type:           msg.Type,
		CreatedAt:      msg.CreatedAt,
		EditedAt:       msg.EditedAt,
		DeletedAt:      msg.DeletedAt,
	}
}
