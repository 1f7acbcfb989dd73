// Package cachekey 缓存键的统一布局
// 稳定的键前缀用于运维排查和按前缀清理，任何改动都是对外兼容性变更
package cachekey

// 键前缀定义
const (
	MessageKey          = "msg:"        // 单条消息独立条目
	ConversationMsgsKey = "conv_msgs:"  // 会话消息时间线（有序集合）
	UserConvListKey     = "user_convs:" // 用户会话列表
	ConversationKey     = "conv:"       // 会话摘要独立条目
	UnreadCountKey      = "unread:"     // (会话,用户)维度未读计数
	PresenceKey         = "presence:"   // 用户在线状态快照
	TypingKey           = "typing:"     // 会话输入中集合（有序集合）
	MetricsKey          = "cache_metrics" // 缓存指标聚合（哈希）
)

// GetMessageKey 单条消息的缓存键
func GetMessageKey(messageID string) string {
	return MessageKey + messageID
}

// GetConversationMsgsKey 会话时间线的缓存键
func GetConversationMsgsKey(conversationID string) string {
	return ConversationMsgsKey + conversationID
}

// GetUserConvListKey 用户会话列表的缓存键
func GetUserConvListKey(userID string) string {
	return UserConvListKey + userID
}

// GetConversationKey 会话摘要的缓存键
func GetConversationKey(conversationID string) string {
	return ConversationKey + conversationID
}

// GetUnreadCountKey (会话,用户)未读计数的缓存键
func GetUnreadCountKey(conversationID, userID string) string {
	return UnreadCountKey + conversationID + ":" + userID
}

// GetPresenceKey 用户在线状态的缓存键
func GetPresenceKey(userID string) string {
	return PresenceKey + userID
}

// GetTypingKey 会话输入中集合的缓存键
func GetTypingKey(conversationID string) string {
	return TypingKey + conversationID
}

// GetMetricsKey 指标聚合的缓存键
func GetMetricsKey() string {
	return MetricsKey
}

// AllPrefixes 全量清理时扫描的所有键前缀
func AllPrefixes() []string {
	return []string{
		MessageKey,
		ConversationMsgsKey,
		UserConvListKey,
		ConversationKey,
		UnreadCountKey,
		PresenceKey,
		TypingKey,
	}
}
