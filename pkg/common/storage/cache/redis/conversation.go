// 会话列表缓存与未读计数缓存的Redis实现
//
// 缓存结构：
// - user_convs:{user}        用户完整会话列表的JSON条目，短TTL
// - conv:{conv}              会话摘要独立条目，RocksCache管理
// - unread:{conv}:{user}     未读计数，普通整数键
//
// 列表与计数都是TTL约束下的近似值。失效是按键全有或全无的：
// 列表删除后靠下一次未命中惰性重建，绝不原地合并部分数据。
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dtm-labs/rockscache"
	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
	"github.com/redis/go-redis/v9"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/prommetrics"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache/cachekey"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

const (
	// convListTimeout 用户会话列表的短TTL
	// 聊天读取对短暂陈旧的容忍远高于对写入延迟的容忍，
	// 这里用TTL租约而不是跨缓存同步协议
	convListTimeout = time.Minute * 5

	// convSummaryTimeout 会话摘要独立条目的TTL
	convSummaryTimeout = time.Minute * 5

	// unreadTimeout 未读计数的TTL
	// 过期即"未知"，下一次读取会按定义从持久层重算
	unreadTimeout = time.Hour * 24
)

// NewConversationCache 创建会话缓存实例
func NewConversationCache(rdb redis.UniversalClient, metrics *prommetrics.CacheMetrics) cache.ConversationCache {
	return &conversationCache{
		rdb:      rdb,
		rcClient: rockscache.NewClient(rdb, *GetRocksCacheOptions()),
		metrics:  metrics,
	}
}

type conversationCache struct {
	rdb      redis.UniversalClient
	rcClient *rockscache.Client // 摘要独立条目的防击穿客户端
	metrics  *prommetrics.CacheMetrics
}

func (c *conversationCache) getListKey(userID string) string {
	return cachekey.GetUserConvListKey(userID)
}

func (c *conversationCache) getConversationKey(conversationID string) string {
	return cachekey.GetConversationKey(conversationID)
}

func (c *conversationCache) getUnreadKey(conversationID, userID string) string {
	return cachekey.GetUnreadCountKey(conversationID, userID)
}

// SetUserConversationList 缓存用户的完整会话列表
// 列表整体与每个摘要独立条目同一TTL写入，摘要走RocksCache的RawSet
// 以保持与GetConversation读路径的存储格式一致
func (c *conversationCache) SetUserConversationList(ctx context.Context, userID string, list *model.ConversationList) error {
	list.CachedAt = time.Now()
	data, err := json.Marshal(list)
	if err != nil {
		return errs.WrapMsg(err, "marshal conversation list failed", "userID", userID)
	}
	if err := c.rdb.Set(ctx, c.getListKey(userID), data, convListTimeout).Err(); err != nil {
		return errs.Wrap(err)
	}
	for _, conversation := range list.Conversations {
		if err := c.setConversationSummary(ctx, conversation); err != nil {
			return err
		}
	}
	return nil
}

func (c *conversationCache) setConversationSummary(ctx context.Context, conversation *model.ConversationSummary) error {
	data, err := json.Marshal(conversation)
	if err != nil {
		return errs.WrapMsg(err, "marshal conversation summary failed", "conversationID", conversation.ID)
	}
	return errs.Wrap(c.rcClient.RawSet(ctx, c.getConversationKey(conversation.ID), string(data), convSummaryTimeout))
}

// GetUserConversationList 原样返回缓存列表
func (c *conversationCache) GetUserConversationList(ctx context.Context, userID string) (*model.ConversationList, error) {
	data, err := c.rdb.Get(ctx, c.getListKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.metrics.IncrMiss()
			return nil, errs.ErrRecordNotFound.WrapMsg("conversation list not cached", "userID", userID)
		}
		return nil, errs.Wrap(err)
	}
	var list model.ConversationList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal conversation list failed", "userID", userID)
	}
	c.metrics.IncrHit()
	return &list, nil
}

// UpdateConversationInList 点更新单个用户缓存列表中的一个会话
// 列表未缓存时静默no-op：用局部更新重建完整列表会缓存一份不完整视图，
// 宁可等下一次未命中整体重建
func (c *conversationCache) UpdateConversationInList(ctx context.Context, userID string, conversation *model.ConversationSummary) error {
	data, err := c.rdb.Get(ctx, c.getListKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			log.ZDebug(ctx, "conversation list not cached, skip point update", "userID", userID, "conversationID", conversation.ID)
			return nil
		}
		return errs.Wrap(err)
	}
	var list model.ConversationList
	if err := json.Unmarshal(data, &list); err != nil {
		return errs.WrapMsg(err, "unmarshal conversation list failed", "userID", userID)
	}
	// 只替换既有条目：列表里没有该会话时追加会让Total失真，同样等下一次未命中重建
	if !list.Replace(conversation) {
		log.ZDebug(ctx, "conversation not in cached list, skip point update", "userID", userID, "conversationID", conversation.ID)
		return nil
	}
	updated, err := json.Marshal(&list)
	if err != nil {
		return errs.WrapMsg(err, "marshal conversation list failed", "userID", userID)
	}
	if err := c.rdb.Set(ctx, c.getListKey(userID), updated, convListTimeout).Err(); err != nil {
		return errs.Wrap(err)
	}
	return c.setConversationSummary(ctx, conversation)
}

// DelUserConversationLists 批量删除用户列表缓存
// 会话的每个变更方都通过这里被扇出失效，删除按槽位分组批量执行
func (c *conversationCache) DelUserConversationLists(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		keys = append(keys, c.getListKey(userID))
	}
	if err := deleteKeysBySlot(ctx, c.rdb, keys); err != nil {
		return err
	}
	c.metrics.IncrEviction(int64(len(keys)))
	return nil
}

// GetConversation 会话摘要独立条目
// RocksCache防击穿，未命中经fn回源并回填
func (c *conversationCache) GetConversation(ctx context.Context, conversationID string, fn func(ctx context.Context) (*model.ConversationSummary, error)) (*model.ConversationSummary, error) {
	missed := false
	summary, err := getCache(ctx, c.rcClient, c.getConversationKey(conversationID), convSummaryTimeout, func(ctx context.Context) (*model.ConversationSummary, error) {
		missed = true
		return fn(ctx)
	})
	if err != nil {
		return nil, err
	}
	if missed {
		c.metrics.IncrMiss()
	} else {
		c.metrics.IncrHit()
	}
	return summary, nil
}

// DelConversation 失效会话摘要独立条目
func (c *conversationCache) DelConversation(ctx context.Context, conversationIDs ...string) error {
	if len(conversationIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(conversationIDs))
	for _, id := range conversationIDs {
		keys = append(keys, c.getConversationKey(id))
	}
	if err := tagDeleteCache(ctx, c.rcClient, keys); err != nil {
		return err
	}
	c.metrics.IncrEviction(int64(len(keys)))
	return nil
}

// SetUnreadCount 写入未读计数
func (c *conversationCache) SetUnreadCount(ctx context.Context, conversationID, userID string, count int64) error {
	return errs.Wrap(c.rdb.Set(ctx, c.getUnreadKey(conversationID, userID), count, unreadTimeout).Err())
}

// GetUnreadCount 读取未读计数
// 键不存在返回errs.ErrRecordNotFound：缺失是"未知"，不是零
func (c *conversationCache) GetUnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	count, err := c.rdb.Get(ctx, c.getUnreadKey(conversationID, userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.metrics.IncrMiss()
			return 0, errs.ErrRecordNotFound.WrapMsg("unread count not cached", "conversationID", conversationID, "userID", userID)
		}
		return 0, errs.Wrap(err)
	}
	c.metrics.IncrHit()
	return count, nil
}

// IncrUnreadCount 原子自增
// INCR是服务端原子加而不是读改写，并发发送方不会互相覆盖
func (c *conversationCache) IncrUnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, c.getUnreadKey(conversationID, userID))
	pipe.Expire(ctx, c.getUnreadKey(conversationID, userID), unreadTimeout)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errs.Wrap(err)
	}
	return incr.Val(), nil
}

// ResetUnreadCount 删除未读计数键
// 不置零：缺失语义是"未知，需重算"，新消息到来前的读取会被迫与持久层对账
func (c *conversationCache) ResetUnreadCount(ctx context.Context, conversationID, userID string) error {
	return errs.Wrap(c.rdb.Del(ctx, c.getUnreadKey(conversationID, userID)).Err())
}
