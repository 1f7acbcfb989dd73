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

// DefaultConversationPageSize 会话列表默认页大小
const DefaultConversationPageSize = 20

// ConversationListOptions 会话列表过滤条件
// 零值表示无过滤，只有无过滤的第一页才允许走缓存
type ConversationListOptions struct {
	Type            string
	IncludeArchived bool
}

func (o *ConversationListOptions) isDefault() bool {
	return o == nil || (o.Type == "" && !o.IncludeArchived)
}

// ConversationDatabase 会话读写协调器
type ConversationDatabase interface {
	// CreateConversation 创建会话并加入初始参与者
	CreateConversation(ctx context.Context, conversation *model.Conversation, participants []*model.Participant) error

	// GetConversation 取单个会话摘要（含参与者与加密标志），缓存加速
	GetConversation(ctx context.Context, conversationID string) (*model.ConversationSummary, error)

	// GetUserConversations 用户会话列表，按活跃度降序
	// 仅无过滤的第一页走缓存；回退路径组装完整摘要后整体回填
	GetUserConversations(ctx context.Context, userID string, page, limit int, opts *ConversationListOptions) (*model.ConversationList, error)

	// AddParticipants 加入参与者，扇出失效全部参与者的列表缓存
	AddParticipants(ctx context.Context, conversationID string, participants []*model.Participant) error

	// RemoveParticipant 移除参与者
	// 被移除者自己的列表缓存同样失效，其列表不应再含该会话
	RemoveParticipant(ctx context.Context, conversationID, userID string) error

	// ArchiveConversation 归档/取消归档
	ArchiveConversation(ctx context.Context, conversationID string, archived bool) error

	// SetMute 设置用户对会话的免打扰，扇出失效全部参与者的列表缓存
	SetMute(ctx context.Context, conversationID, userID string, muted bool) error

	// GetUnreadCount 单会话未读数，缓存缺失时按定义重算并回填
	GetUnreadCount(ctx context.Context, conversationID, userID string) (int64, error)

	// WarmUserConversations 预热用户会话列表缓存
	WarmUserConversations(ctx context.Context, userID string) (int, error)
}

func NewConversationDatabase(
	conversationDB database.Conversation,
	participantDB database.Participant,
	msgDB database.Msg,
	conversationCache cache.ConversationCache,
	emitter push.Emitter,
) ConversationDatabase {
	return &conversationDatabase{
		conversationDB:    conversationDB,
		participantDB:     participantDB,
		msgDB:             msgDB,
		conversationCache: conversationCache,
		emitter:           emitter,
	}
}

type conversationDatabase struct {
	conversationDB    database.Conversation
	participantDB     database.Participant
	msgDB             database.Msg
	conversationCache cache.ConversationCache
	emitter           push.Emitter
}

func (db *conversationDatabase) CreateConversation(ctx context.Context, conversation *model.Conversation, participants []*model.Participant) error {
	if conversation.ID == "" {
		conversation.ID = uuid.NewString()
	}
	now := time.Now()
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}
	conversation.UpdatedAt = conversation.CreatedAt
	if err := db.conversationDB.Create(ctx, conversation); err != nil {
		return err
	}
	for _, participant := range participants {
		participant.ConversationID = conversation.ID
		if participant.Role == "" {
			participant.Role = model.ParticipantRoleMember
		}
		if participant.JoinedAt.IsZero() {
			participant.JoinedAt = now
		}
		participant.LastReadAt = participant.JoinedAt
	}
	if err := db.participantDB.Add(ctx, participants); err != nil {
		return err
	}
	userIDs := datautil.Slice(participants, func(p *model.Participant) string { return p.UserID })
	db.fanOutInvalidate(ctx, conversation.ID, userIDs)
	if err := db.emitter.EmitToUsers(ctx, userIDs, push.EventConversationUpdated, map[string]any{
		"conversation_id": conversation.ID,
		"action":          "created",
	}); err != nil {
		log.ZWarn(ctx, "emit conversation created event failed", err, "conversationID", conversation.ID)
	}
	return nil
}

// composeSummary 从持久层组装会话摘要
// 加密标志不读取任何持久化字段，按会话形态现场推导
func (db *conversationDatabase) composeSummary(ctx context.Context, conversation *model.Conversation) (*model.ConversationSummary, error) {
	userIDs, err := db.participantDB.FindUserIDs(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}
	conversation.ParticipantCount = len(userIDs)
	summary := &model.ConversationSummary{
		ID:               conversation.ID,
		Type:             conversation.Type,
		Name:             conversation.Name,
		AvatarURL:        conversation.AvatarURL,
		ParticipantIDs:   userIDs,
		ParticipantCount: len(userIDs),
		IsEncrypted:      conversation.ShouldEncrypt(),
		IsArchived:       conversation.IsArchived,
		CreatedAt:        conversation.CreatedAt,
		UpdatedAt:        conversation.UpdatedAt,
	}
	last, err := db.msgDB.TakeLast(ctx, conversation.ID)
	if err == nil {
		summary.LastMessage = model.NewCachedMessage(last)
	} else if !errs.ErrRecordNotFound.Is(err) {
		return nil, err
	}
	return summary, nil
}

func (db *conversationDatabase) GetConversation(ctx context.Context, conversationID string) (*model.ConversationSummary, error) {
	fetch := func(ctx context.Context) (*model.ConversationSummary, error) {
		conversation, err := db.conversationDB.Take(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		return db.composeSummary(ctx, conversation)
	}
	summary, err := db.conversationCache.GetConversation(ctx, conversationID, fetch)
	if err == nil {
		return summary, nil
	}
	if errs.ErrRecordNotFound.Is(err) {
		return nil, err
	}
	// 缓存层故障降级为未命中，直接回源持久层；持久层错误会原样冒出
	log.ZWarn(ctx, "get conversation from cache failed", err, "conversationID", conversationID)
	return fetch(ctx)
}

func (db *conversationDatabase) GetUserConversations(ctx context.Context, userID string, page, limit int, opts *ConversationListOptions) (*model.ConversationList, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultConversationPageSize
	}
	cacheable := page == 1 && opts.isDefault()
	if cacheable {
		list, err := db.conversationCache.GetUserConversationList(ctx, userID)
		if err == nil {
			return list, nil
		}
		if !errs.ErrRecordNotFound.Is(err) {
			log.ZWarn(ctx, "get conversation list from cache failed", err, "userID", userID)
		}
	}
	var convType string
	var includeArchived bool
	if opts != nil {
		convType, includeArchived = opts.Type, opts.IncludeArchived
	}
	total, conversations, err := db.conversationDB.FindByUser(ctx, userID, convType, includeArchived, page, limit)
	if err != nil {
		return nil, err
	}
	list := &model.ConversationList{Total: total, CachedAt: time.Now()}
	for _, conversation := range conversations {
		summary, err := db.composeSummary(ctx, conversation)
		if err != nil {
			return nil, err
		}
		summary.UnreadCount, err = db.GetUnreadCount(ctx, conversation.ID, userID)
		if err != nil {
			// 未读数拿不到不阻塞列表，按0展示等下一次读取对账
			log.ZWarn(ctx, "get unread count failed", err, "conversationID", conversation.ID, "userID", userID)
		}
		list.Conversations = append(list.Conversations, summary)
	}
	list.Sort()
	if cacheable {
		if err := db.conversationCache.SetUserConversationList(ctx, userID, list); err != nil {
			log.ZWarn(ctx, "repopulate conversation list cache failed", err, "userID", userID)
		}
	}
	return list, nil
}

func (db *conversationDatabase) AddParticipants(ctx context.Context, conversationID string, participants []*model.Participant) error {
	now := time.Now()
	for _, participant := range participants {
		participant.ConversationID = conversationID
		if participant.Role == "" {
			participant.Role = model.ParticipantRoleMember
		}
		if participant.JoinedAt.IsZero() {
			participant.JoinedAt = now
		}
		participant.LastReadAt = participant.JoinedAt
	}
	if err := db.participantDB.Add(ctx, participants); err != nil {
		return err
	}
	return db.afterMembershipChange(ctx, conversationID, "participants_added")
}

func (db *conversationDatabase) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	if err := db.participantDB.Remove(ctx, conversationID, userID, time.Now()); err != nil {
		return err
	}
	if err := db.conversationCache.ResetUnreadCount(ctx, conversationID, userID); err != nil {
		log.ZWarn(ctx, "reset unread for removed participant failed", err, "conversationID", conversationID, "userID", userID)
	}
	// 被移除者已不在当前参与者集合里，单独失效其列表缓存
	if err := db.conversationCache.DelUserConversationLists(ctx, userID); err != nil {
		log.ZWarn(ctx, "invalidate removed participant list failed", err, "userID", userID)
	}
	return db.afterMembershipChange(ctx, conversationID, "participant_removed")
}

// afterMembershipChange 成员或会话属性变动后的扇出失效与通知
// 参与者数量变化会影响推导出的加密标志，摘要条目必须一并失效
func (db *conversationDatabase) afterMembershipChange(ctx context.Context, conversationID, action string) error {
	userIDs, err := db.participantDB.FindUserIDs(ctx, conversationID)
	if err != nil {
		log.ZWarn(ctx, "find participants for fan-out failed", err, "conversationID", conversationID)
		return nil
	}
	db.fanOutInvalidate(ctx, conversationID, userIDs)
	if err := db.emitter.EmitToUsers(ctx, userIDs, push.EventConversationUpdated, map[string]any{
		"conversation_id": conversationID,
		"action":          action,
	}); err != nil {
		log.ZWarn(ctx, "emit conversation updated event failed", err, "conversationID", conversationID)
	}
	return nil
}

func (db *conversationDatabase) fanOutInvalidate(ctx context.Context, conversationID string, userIDs []string) {
	if err := db.conversationCache.DelConversation(ctx, conversationID); err != nil {
		log.ZWarn(ctx, "invalidate conversation summary failed", err, "conversationID", conversationID)
	}
	if len(userIDs) == 0 {
		return
	}
	if err := db.conversationCache.DelUserConversationLists(ctx, userIDs...); err != nil {
		log.ZWarn(ctx, "fan-out invalidate conversation lists failed", err, "conversationID", conversationID)
	}
}

func (db *conversationDatabase) ArchiveConversation(ctx context.Context, conversationID string, archived bool) error {
	args := map[string]any{"is_archived": archived, "updated_at": time.Now()}
	if archived {
		args["archived_at"] = time.Now()
	} else {
		args["archived_at"] = nil
	}
	if err := db.conversationDB.UpdateByMap(ctx, conversationID, args); err != nil {
		return err
	}
	return db.afterMembershipChange(ctx, conversationID, "archived")
}

func (db *conversationDatabase) SetMute(ctx context.Context, conversationID, userID string, muted bool) error {
	if err := db.participantDB.SetMute(ctx, conversationID, userID, muted); err != nil {
		return err
	}
	return db.afterMembershipChange(ctx, conversationID, "mute_changed")
}

func (db *conversationDatabase) GetUnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	count, err := db.conversationCache.GetUnreadCount(ctx, conversationID, userID)
	if err == nil {
		return count, nil
	}
	if !errs.ErrRecordNotFound.Is(err) {
		log.ZWarn(ctx, "get unread count from cache failed", err, "conversationID", conversationID, "userID", userID)
	}
	// 键缺失语义是"未知"：按锚点定义重算再回填
	participant, err := db.participantDB.Take(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	count, err = db.msgDB.CountUnread(ctx, conversationID, userID, participant.LastReadAt)
	if err != nil {
		return 0, err
	}
	if err := db.conversationCache.SetUnreadCount(ctx, conversationID, userID, count); err != nil {
		log.ZWarn(ctx, "repopulate unread count failed", err, "conversationID", conversationID, "userID", userID)
	}
	return count, nil
}

func (db *conversationDatabase) WarmUserConversations(ctx context.Context, userID string) (int, error) {
	list, err := db.GetUserConversations(ctx, userID, 1, DefaultConversationPageSize, nil)
	if err != nil {
		return 0, err
	}
	if err := db.conversationCache.SetUserConversationList(ctx, userID, list); err != nil {
		return 0, err
	}
	return len(list.Conversations), nil
}
