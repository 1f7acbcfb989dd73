package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openimsdk/tools/errs"
	"github.com/stretchr/testify/require"

	"github.com/Stormrider66/hockey-hub-sub002/internal/push"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

type convFixture struct {
	conversationDB    *stubConversationDB
	participantDB     *stubParticipantDB
	msgDB             *stubMsgDB
	conversationCache *stubConversationCache
	emitter           *stubEmitter
	db                ConversationDatabase
}

func newConvFixture() *convFixture {
	f := &convFixture{
		conversationDB:    newStubConversationDB(),
		participantDB:     newStubParticipantDB(),
		msgDB:             newStubMsgDB(),
		conversationCache: newStubConversationCache(),
		emitter:           &stubEmitter{},
	}
	f.db = NewConversationDatabase(f.conversationDB, f.participantDB, f.msgDB, f.conversationCache, f.emitter)
	return f
}

func (f *convFixture) seedConversation(id, convType string, userIDs ...string) {
	f.conversationDB.conversations[id] = &model.Conversation{
		ID: id, Type: convType, CreatedBy: userIDs[0],
		CreatedAt: time.UnixMilli(1000), UpdatedAt: time.UnixMilli(1000),
	}
	f.participantDB.seed(id, userIDs...)
}

func TestCreateConversation(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()

	conversation := &model.Conversation{Type: model.ConversationTypeGroup, Name: "U16 forwards", CreatedBy: "u1"}
	participants := []*model.Participant{{UserID: "u1", Role: model.ParticipantRoleAdmin}, {UserID: "u2"}}
	require.NoError(t, f.db.CreateConversation(ctx, conversation, participants))
	require.NotEmpty(t, conversation.ID)

	// 参与者补齐默认值并挂到新会话
	for _, participant := range participants {
		require.Equal(t, conversation.ID, participant.ConversationID)
		require.False(t, participant.JoinedAt.IsZero())
		require.Equal(t, participant.JoinedAt, participant.LastReadAt)
	}
	require.Equal(t, model.ParticipantRoleMember, participants[1].Role)

	require.ElementsMatch(t, []string{"u1", "u2"}, f.conversationCache.listDels)
	require.Equal(t, []string{push.EventConversationUpdated}, f.emitter.eventsFor("u2"))
}

// 摘要的加密标志按会话形态现场推导，不读任何持久化字段
func TestGetConversationDerivesEncryption(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	f.seedConversation("c1", model.ConversationTypeDirect, "u1", "u2")
	f.msgDB.messages["m1"] = &model.Message{ID: "m1", ConversationID: "c1", SenderID: "u1", Content: "hi", CreatedAt: time.UnixMilli(2000)}

	summary, err := f.db.GetConversation(ctx, "c1")
	require.NoError(t, err)
	require.True(t, summary.IsEncrypted)
	require.Equal(t, 2, summary.ParticipantCount)
	require.NotNil(t, summary.LastMessage)
	require.Equal(t, "m1", summary.LastMessage.ID)

	// 第三人加入后单聊形态不再成立
	f.participantDB.seed("c1", "u3")
	summary, err = f.db.GetConversation(ctx, "c1")
	require.NoError(t, err)
	require.False(t, summary.IsEncrypted)
}

// 空会话没有最新消息，摘要照常组装
func TestGetConversationEmptyConversation(t *testing.T) {
	f := newConvFixture()
	f.seedConversation("c1", model.ConversationTypeTeam, "u1", "u2")

	summary, err := f.db.GetConversation(context.Background(), "c1")
	require.NoError(t, err)
	require.Nil(t, summary.LastMessage)

	_, err = f.db.GetConversation(context.Background(), "missing")
	require.True(t, errs.ErrRecordNotFound.Is(err))
}

// 缓存层故障降级为未命中，摘要直接从持久层组装返回
func TestGetConversationCacheFailureFallsBack(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	f.seedConversation("c1", model.ConversationTypeDirect, "u1", "u2")
	f.conversationCache.getConversationFn = func(ctx context.Context, conversationID string, fn func(ctx context.Context) (*model.ConversationSummary, error)) (*model.ConversationSummary, error) {
		return nil, errors.New("redis down")
	}

	summary, err := f.db.GetConversation(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "c1", summary.ID)
	require.True(t, summary.IsEncrypted)

	// 持久层缺失仍然是缺失，不被降级吞掉
	_, err = f.db.GetConversation(ctx, "missing")
	require.True(t, errs.ErrRecordNotFound.Is(err))
}

func TestGetUserConversationsCachesFirstDefaultPage(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	f.seedConversation("c1", model.ConversationTypeGroup, "u1", "u2")

	list, err := f.db.GetUserConversations(ctx, "u1", 1, 20, nil)
	require.NoError(t, err)
	require.Len(t, list.Conversations, 1)
	// 无过滤的第一页整体回填
	require.Contains(t, f.conversationCache.lists, "u1")

	// 第二次读取直接命中缓存
	cached, err := f.db.GetUserConversations(ctx, "u1", 1, 20, nil)
	require.NoError(t, err)
	require.Equal(t, list, cached)
}

// 带过滤或翻页的读取不写缓存，避免缓存一份不完整视图
func TestGetUserConversationsFilteredBypassesCache(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	f.seedConversation("c1", model.ConversationTypeGroup, "u1", "u2")
	f.seedConversation("c2", model.ConversationTypeTeam, "u1", "u2")

	list, err := f.db.GetUserConversations(ctx, "u1", 1, 20, &ConversationListOptions{Type: model.ConversationTypeTeam})
	require.NoError(t, err)
	require.Len(t, list.Conversations, 1)
	require.Equal(t, "c2", list.Conversations[0].ID)
	// 总数按过滤后的集合计算，不是全部会话数
	require.EqualValues(t, 1, list.Total)
	require.NotContains(t, f.conversationCache.lists, "u1")

	_, err = f.db.GetUserConversations(ctx, "u1", 2, 20, nil)
	require.NoError(t, err)
	require.NotContains(t, f.conversationCache.lists, "u1")
}

// 归档会话默认不出现在列表里，总数同样不计入
func TestGetUserConversationsSkipsArchived(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	f.seedConversation("c1", model.ConversationTypeGroup, "u1", "u2")
	f.seedConversation("c2", model.ConversationTypeGroup, "u1", "u2")
	f.conversationDB.conversations["c1"].IsArchived = true

	list, err := f.db.GetUserConversations(ctx, "u1", 1, 20, nil)
	require.NoError(t, err)
	require.Len(t, list.Conversations, 1)
	require.Equal(t, "c2", list.Conversations[0].ID)
	require.EqualValues(t, 1, list.Total)

	list, err = f.db.GetUserConversations(ctx, "u1", 1, 20, &ConversationListOptions{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, list.Conversations, 2)
	require.EqualValues(t, 2, list.Total)
}

// 未读数拿不到不阻塞列表
func TestGetUserConversationsToleratesUnreadFailure(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	f.seedConversation("c1", model.ConversationTypeGroup, "u1", "u2")
	f.conversationCache.getUnreadCountFn = func(ctx context.Context, conversationID, userID string) (int64, error) {
		return 0, errors.New("redis down")
	}

	list, err := f.db.GetUserConversations(ctx, "u1", 1, 20, nil)
	require.NoError(t, err)
	require.Len(t, list.Conversations, 1)
	require.EqualValues(t, 0, list.Conversations[0].UnreadCount)
}

// 成员变动扇出失效，参与者数量影响推导的加密标志
func TestAddParticipantsFanOut(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	f.seedConversation("c1", model.ConversationTypeGroup, "u1", "u2")

	require.NoError(t, f.db.AddParticipants(ctx, "c1", []*model.Participant{{UserID: "u3"}}))
	require.Equal(t, []string{"c1"}, f.conversationCache.summaryDels)
	require.ElementsMatch(t, []string{"u1", "u2", "u3"}, f.conversationCache.listDels)
	require.Equal(t, []string{push.EventConversationUpdated}, f.emitter.eventsFor("u3"))
}

// 被移除者不在剩余参与者集合里，其列表缓存与未读计数单独清理
func TestRemoveParticipant(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	f.seedConversation("c1", model.ConversationTypeGroup, "u1", "u2", "u3")
	f.conversationCache.unreads["c1/u3"] = 7

	require.NoError(t, f.db.RemoveParticipant(ctx, "c1", "u3"))
	require.NotContains(t, f.conversationCache.unreads, "c1/u3")
	require.Contains(t, f.conversationCache.listDels, "u3")
	require.ElementsMatch(t, []string{"u1", "u2"}, func() []string {
		ids, _ := f.participantDB.FindUserIDs(ctx, "c1")
		return ids
	}())
}

func TestArchiveConversation(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	f.seedConversation("c1", model.ConversationTypeGroup, "u1", "u2")

	require.NoError(t, f.db.ArchiveConversation(ctx, "c1", true))
	require.True(t, f.conversationDB.conversations["c1"].IsArchived)
	require.Equal(t, []string{"c1"}, f.conversationCache.summaryDels)
}

// 免打扰与其他会话变更走同一条扇出失效路径
func TestSetMuteFansOutInvalidation(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	f.seedConversation("c1", model.ConversationTypeGroup, "u1", "u2")

	require.NoError(t, f.db.SetMute(ctx, "c1", "u1", true))
	require.True(t, f.participantDB.participants["c1/u1"].IsMuted)
	require.ElementsMatch(t, []string{"u1", "u2"}, f.conversationCache.listDels)
	require.Equal(t, []string{"c1"}, f.conversationCache.summaryDels)
}

// 计数键缺失按锚点定义重算再回填
func TestGetUnreadCountRecomputesOnMiss(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	f.seedConversation("c1", model.ConversationTypeGroup, "u1", "u2")
	f.participantDB.participants["c1/u1"].LastReadAt = time.UnixMilli(1000)
	// u1锚点之后有两条他人消息、一条自己的、一条墓碑
	deleted := time.UnixMilli(5000)
	f.msgDB.messages["m1"] = &model.Message{ID: "m1", ConversationID: "c1", SenderID: "u2", CreatedAt: time.UnixMilli(2000)}
	f.msgDB.messages["m2"] = &model.Message{ID: "m2", ConversationID: "c1", SenderID: "u2", CreatedAt: time.UnixMilli(3000)}
	f.msgDB.messages["m3"] = &model.Message{ID: "m3", ConversationID: "c1", SenderID: "u1", CreatedAt: time.UnixMilli(4000)}
	f.msgDB.messages["m4"] = &model.Message{ID: "m4", ConversationID: "c1", SenderID: "u2", CreatedAt: time.UnixMilli(4500), DeletedAt: &deleted}

	count, err := f.db.GetUnreadCount(ctx, "c1", "u1")
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	// 重算结果回填
	require.EqualValues(t, 2, f.conversationCache.unreads["c1/u1"])

	// 缓存命中时不触发重算
	f.msgDB.countUnreadFn = func(ctx context.Context, conversationID, userID string, lastReadAt time.Time) (int64, error) {
		t.Fatal("cached unread count must not recompute")
		return 0, nil
	}
	count, err = f.db.GetUnreadCount(ctx, "c1", "u1")
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestWarmUserConversations(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	f.seedConversation("c1", model.ConversationTypeGroup, "u1", "u2")

	warmed, err := f.db.WarmUserConversations(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, warmed)
	require.Contains(t, f.conversationCache.lists, "u1")
}
