// Package controller 缓存协调器
// 持久层是唯一事实来源：写操作先落库，再同步更新或失效缓存；
// 库写失败直接返回，缓存步骤失败降级为告警并继续，
// 绝不让缓存故障升级为写路径失败
package controller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
	"github.com/openimsdk/tools/utils/datautil"

	"github.com/Stormrider66/hockey-hub-sub002/internal/push"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/database"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

// MsgDatabase 消息读写协调器
type MsgDatabase interface {
	// SendMsg 发送消息：落库、推进会话活跃时间、写消息缓存、
	// 扇出失效参与者列表缓存、自增接收方未读数、发事件
	// 落库之后的任何一步失败都不会使发送失败
	SendMsg(ctx context.Context, msg *model.Message) (*model.Message, error)

	// GetMessage 点查单条消息，缓存未命中回源并回填
	GetMessage(ctx context.Context, messageID string) (*model.CachedMessage, error)

	// GetConversationMessages 读取会话消息页
	// 仅当keyword与afterID均为空时尝试缓存；未命中回源后整页回填
	GetConversationMessages(ctx context.Context, conversationID string, limit int, beforeID, afterID, keyword string) ([]*model.CachedMessage, error)

	// EditMsg 编辑消息内容
	// 不对时间线做原地修补，整体失效换下一次读取的正确性
	EditMsg(ctx context.Context, messageID, content string) (*model.Message, error)

	// RevokeMsg 软删除消息，墓碑保留在持久层排序中
	RevokeMsg(ctx context.Context, messageID string) error

	// MarkConversationRead 标记会话已读：推进锚点、删除未读计数键、
	// 点更新读者自己的列表缓存
	MarkConversationRead(ctx context.Context, conversationID, userID string) error

	// WarmConversationTimeline 预热会话时间线缓存
	WarmConversationTimeline(ctx context.Context, conversationID string, limit int) (int, error)
}

func NewMsgDatabase(
	msgDB database.Msg,
	conversationDB database.Conversation,
	participantDB database.Participant,
	msgCache cache.MsgCache,
	conversationCache cache.ConversationCache,
	emitter push.Emitter,
) MsgDatabase {
	return &msgDatabase{
		msgDB:             msgDB,
		conversationDB:    conversationDB,
		participantDB:     participantDB,
		msgCache:          msgCache,
		conversationCache: conversationCache,
		emitter:           emitter,
	}
}

type msgDatabase struct {
	msgDB             database.Msg
	conversationDB    database.Conversation
	participantDB     database.Participant
	msgCache          cache.MsgCache
	conversationCache cache.ConversationCache
	emitter           push.Emitter
}

func (db *msgDatabase) SendMsg(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg.ConversationID == "" || msg.SenderID == "" {
		return nil, errs.ErrArgs.WrapMsg("conversationID and senderID required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.Type == "" {
		msg.Type = model.MessageTypeText
	}
	// 唯一可以使发送失败的一步
	if err := db.msgDB.Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := db.conversationDB.Touch(ctx, msg.ConversationID, msg.CreatedAt); err != nil {
		log.ZWarn(ctx, "touch conversation failed", err, "conversationID", msg.ConversationID)
	}
	cached := model.NewCachedMessage(msg)
	if err := db.msgCache.CacheMessage(ctx, cached); err != nil {
		log.ZWarn(ctx, "cache message failed", err, "messageID", msg.ID)
	}
	userIDs, err := db.participantDB.FindUserIDs(ctx, msg.ConversationID)
	if err != nil {
		// 拿不到参与者集合就无法扇出，列表缓存靠短TTL自愈
		log.ZWarn(ctx, "find participants for fan-out failed", err, "conversationID", msg.ConversationID)
		return msg, nil
	}
	if err := db.conversationCache.DelUserConversationLists(ctx, userIDs...); err != nil {
		log.ZWarn(ctx, "fan-out invalidate conversation lists failed", err, "conversationID", msg.ConversationID)
	}
	if err := db.conversationCache.DelConversation(ctx, msg.ConversationID); err != nil {
		log.ZWarn(ctx, "invalidate conversation summary failed", err, "conversationID", msg.ConversationID)
	}
	recipients := datautil.SliceSub(userIDs, []string{msg.SenderID})
	for _, userID := range recipients {
		if _, err := db.conversationCache.IncrUnreadCount(ctx, msg.ConversationID, userID); err != nil {
			log.ZWarn(ctx, "incr unread count failed", err, "conversationID", msg.ConversationID, "userID", userID)
		}
	}
	if err := db.emitter.EmitToUsers(ctx, recipients, push.EventNewMessage, cached); err != nil {
		log.ZWarn(ctx, "emit new message event failed", err, "messageID", msg.ID)
	}
	return msg, nil
}

func (db *msgDatabase) GetMessage(ctx context.Context, messageID string) (*model.CachedMessage, error) {
	cached, err := db.msgCache.GetMessage(ctx, messageID)
	if err == nil {
		return cached, nil
	}
	if !errs.ErrRecordNotFound.Is(err) {
		log.ZWarn(ctx, "get message from cache failed", err, "messageID", messageID)
	}
	msg, err := db.msgDB.Take(ctx, messageID)
	if err != nil {
		return nil, err
	}
	cached = model.NewCachedMessage(msg)
	if err := db.msgCache.CacheMessage(ctx, cached); err != nil {
		log.ZWarn(ctx, "repopulate message cache failed", err, "messageID", messageID)
	}
	return cached, nil
}

func (db *msgDatabase) GetConversationMessages(ctx context.Context, conversationID string, limit int, beforeID, afterID, keyword string) ([]*model.CachedMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	// 检索与after游标永不走缓存
	if keyword != "" {
		msgs, err := db.msgDB.Search(ctx, conversationID, keyword, limit)
		if err != nil {
			return nil, err
		}
		return datautil.Slice(msgs, model.NewCachedMessage), nil
	}
	if afterID != "" {
		msgs, err := db.msgDB.FindAfter(ctx, conversationID, afterID, limit)
		if err != nil {
			return nil, err
		}
		return datautil.Slice(msgs, model.NewCachedMessage), nil
	}
	var before int64
	if beforeID != "" {
		// before游标先按ID解析为该消息的创建时间毫秒值
		anchor, err := db.GetMessage(ctx, beforeID)
		if err != nil {
			return nil, err
		}
		before = anchor.CreatedAt.UnixMilli()
	}
	cached, err := db.msgCache.GetConversationMessages(ctx, conversationID, limit, before)
	if err != nil {
		log.ZWarn(ctx, "get timeline from cache failed", err, "conversationID", conversationID)
	} else if len(cached) >= limit {
		// 时间线只保证最近后缀：不足一页无法区分缓存半热和历史到头，按未命中处理
		return cached, nil
	}
	// 未命中：回源持久层并整页回填
	var msgs []*model.Message
	if before > 0 {
		msgs, err = db.msgDB.FindBefore(ctx, conversationID, time.UnixMilli(before), limit)
	} else {
		msgs, err = db.msgDB.FindRecent(ctx, conversationID, limit)
	}
	if err != nil {
		return nil, err
	}
	result := datautil.Slice(msgs, model.NewCachedMessage)
	if len(result) > 0 {
		if err := db.msgCache.CacheMessages(ctx, result); err != nil {
			log.ZWarn(ctx, "repopulate timeline cache failed", err, "conversationID", conversationID)
		}
	}
	return result, nil
}

func (db *msgDatabase) EditMsg(ctx context.Context, messageID, content string) (*model.Message, error) {
	if err := db.msgDB.UpdateContent(ctx, messageID, content, time.Now()); err != nil {
		return nil, err
	}
	msg, err := db.msgDB.Take(ctx, messageID)
	if err != nil {
		return nil, err
	}
	db.invalidateAfterMutation(ctx, msg, push.EventMessageEdited)
	return msg, nil
}

func (db *msgDatabase) RevokeMsg(ctx context.Context, messageID string) error {
	msg, err := db.msgDB.Take(ctx, messageID)
	if err != nil {
		return err
	}
	now := time.Now()
	if err := db.msgDB.SoftDelete(ctx, messageID, now); err != nil {
		return err
	}
	msg.DeletedAt = &now
	db.invalidateAfterMutation(ctx, msg, push.EventMessageDeleted)
	return nil
}

// invalidateAfterMutation 编辑/删除后的缓存处理：
// 删除独立条目、整体失效时间线、扇出失效参与者列表缓存并发事件
func (db *msgDatabase) invalidateAfterMutation(ctx context.Context, msg *model.Message, event string) {
	if err := db.msgCache.DelMessages(ctx, msg.ID); err != nil {
		log.ZWarn(ctx, "del message cache failed", err, "messageID", msg.ID)
	}
	if err := db.msgCache.DelConversationMessages(ctx, msg.ConversationID); err != nil {
		log.ZWarn(ctx, "invalidate timeline failed", err, "conversationID", msg.ConversationID)
	}
	userIDs, err := db.participantDB.FindUserIDs(ctx, msg.ConversationID)
	if err != nil {
		log.ZWarn(ctx, "find participants for fan-out failed", err, "conversationID", msg.ConversationID)
		return
	}
	if err := db.conversationCache.DelUserConversationLists(ctx, userIDs...); err != nil {
		log.ZWarn(ctx, "fan-out invalidate conversation lists failed", err, "conversationID", msg.ConversationID)
	}
	if err := db.emitter.EmitToUsers(ctx, userIDs, event, model.NewCachedMessage(msg)); err != nil {
		log.ZWarn(ctx, "emit message event failed", err, "messageID", msg.ID)
	}
}

func (db *msgDatabase) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	now := time.Now()
	if err := db.participantDB.SetLastRead(ctx, conversationID, userID, now); err != nil {
		return err
	}
	// 删除而不是置零：缺失语义是"未知，需重算"
	if err := db.conversationCache.ResetUnreadCount(ctx, conversationID, userID); err != nil {
		log.ZWarn(ctx, "reset unread count failed", err, "conversationID", conversationID, "userID", userID)
	}
	// 点更新读者自己的列表缓存；列表未缓存时内部no-op
	cached, err := db.conversationCache.GetUserConversationList(ctx, userID)
	if err == nil {
		for _, summary := range cached.Conversations {
			if summary.ID == conversationID {
				summary.UnreadCount = 0
				if err := db.conversationCache.UpdateConversationInList(ctx, userID, summary); err != nil {
					log.ZWarn(ctx, "patch conversation list failed", err, "userID", userID)
				}
				break
			}
		}
	} else if !errs.ErrRecordNotFound.Is(err) {
		log.ZWarn(ctx, "load conversation list for patch failed", err, "userID", userID)
	}
	if err := db.emitter.EmitToUser(ctx, userID, push.EventMessageRead, map[string]any{
		"conversation_id": conversationID,
		"read_at":         now,
	}); err != nil {
		log.ZWarn(ctx, "emit read event failed", err, "conversationID", conversationID)
	}
	return nil
}

func (db *msgDatabase) WarmConversationTimeline(ctx context.Context, conversationID string, limit int) (int, error) {
	msgs, err := db.msgDB.FindRecent(ctx, conversationID, limit)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	if err := db.msgCache.CacheMessages(ctx, datautil.Slice(msgs, model.NewCachedMessage)); err != nil {
		return 0, err
	}
	return len(msgs), nil
}
