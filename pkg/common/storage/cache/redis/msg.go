// 消息缓存引擎的Redis实现
//
// 缓存结构：
// - msg:{id}                单条消息的JSON独立条目，带TTL
// - conv_msgs:{conv}        会话时间线，有序集合，score为created_at毫秒值
//
// 时间线用score排序换来O(log n)插入和免重排的范围分页；
// 每次插入后按score升序淘汰超出上限的最老成员，内存与会话长度无关。
// score写入与到达顺序无关，并发发送方乱序到达也能得到正确交错的时间线。
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
	"github.com/redis/go-redis/v9"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/prommetrics"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache/cachekey"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

const (
	// msgCacheTimeout 单条消息独立条目的过期时间
	msgCacheTimeout = time.Hour

	// timelineTimeout 会话时间线的过期时间
	// 时间线是持久层的后缀一致视图，过期后下一次读取会整体回填
	timelineTimeout = time.Hour * 24

	// DefaultTimelineLimit 时间线长度上限的默认值
	DefaultTimelineLimit = 100
)

// NewMsgCache 创建消息缓存实例
// timelineLimit小于等于0时使用默认上限
func NewMsgCache(rdb redis.UniversalClient, timelineLimit int, metrics *prommetrics.CacheMetrics) cache.MsgCache {
	if timelineLimit <= 0 {
		timelineLimit = DefaultTimelineLimit
	}
	return &msgCache{
		rdb:           rdb,
		timelineLimit: timelineLimit,
		metrics:       metrics,
	}
}

type msgCache struct {
	rdb           redis.UniversalClient
	timelineLimit int                       // 时间线有界长度
	metrics       *prommetrics.CacheMetrics // 命中/未命中/淘汰计数
}

func (c *msgCache) getMessageKey(messageID string) string {
	return cachekey.GetMessageKey(messageID)
}

func (c *msgCache) getTimelineKey(conversationID string) string {
	return cachekey.GetConversationMsgsKey(conversationID)
}

// CacheMessage 写入单条消息
func (c *msgCache) CacheMessage(ctx context.Context, msg *model.CachedMessage) error {
	return c.CacheMessages(ctx, []*model.CachedMessage{msg})
}

// CacheMessages 批量写入消息
// 一个Pipeline内完成：独立条目SET + 时间线ZADD + 按score升序裁剪 + 时间线续期
// 裁剪放在插入之后，保证任一时刻时间线内容都是真实时间线的最近后缀
func (c *msgCache) CacheMessages(ctx context.Context, msgs []*model.CachedMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	pipe := c.rdb.TxPipeline()
	trims := make(map[string]*redis.IntCmd)
	for _, msg := range msgs {
		if msg == nil || msg.ID == "" {
			continue
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return errs.WrapMsg(err, "marshal cached message failed", "messageID", msg.ID)
		}
		pipe.Set(ctx, c.getMessageKey(msg.ID), data, msgCacheTimeout)
		timelineKey := c.getTimelineKey(msg.ConversationID)
		pipe.ZAdd(ctx, timelineKey, redis.Z{Score: msg.Score(), Member: string(data)})
		if _, ok := trims[timelineKey]; !ok {
			trims[timelineKey] = nil
		}
	}
	// 每个涉及的时间线裁剪一次即可
	for timelineKey := range trims {
		trims[timelineKey] = pipe.ZRemRangeByRank(ctx, timelineKey, 0, int64(-(c.timelineLimit + 1)))
		pipe.Expire(ctx, timelineKey, timelineTimeout)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(err)
	}
	for _, cmd := range trims {
		if evicted, err := cmd.Result(); err == nil {
			c.metrics.IncrEviction(evicted)
		}
	}
	return nil
}

// GetMessage 点查单条消息
func (c *msgCache) GetMessage(ctx context.Context, messageID string) (*model.CachedMessage, error) {
	data, err := c.rdb.Get(ctx, c.getMessageKey(messageID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.metrics.IncrMiss()
			return nil, errs.ErrRecordNotFound.WrapMsg("message not cached", "messageID", messageID)
		}
		return nil, errs.Wrap(err)
	}
	var msg model.CachedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal cached message failed", "messageID", messageID)
	}
	c.metrics.IncrHit()
	return &msg, nil
}

// GetConversationMessages 按score降序读取最近limit条
// before大于0时用开区间"(before"只取严格更早的条目；
// 空结果交由调用方回退持久层，本方法绝不自行回源
func (c *msgCache) GetConversationMessages(ctx context.Context, conversationID string, limit int, before int64) ([]*model.CachedMessage, error) {
	max := "+inf"
	if before > 0 {
		max = "(" + strconv.FormatInt(before, 10)
	}
	members, err := c.rdb.ZRevRangeByScore(ctx, c.getTimelineKey(conversationID), &redis.ZRangeBy{
		Min:    "-inf",
		Max:    max,
		Offset: 0,
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, errs.Wrap(err)
	}
	if len(members) == 0 {
		c.metrics.IncrMiss()
		return []*model.CachedMessage{}, nil
	}
	msgs := make([]*model.CachedMessage, 0, len(members))
	for _, member := range members {
		var msg model.CachedMessage
		if err := json.Unmarshal([]byte(member), &msg); err != nil {
			// 个别损坏成员按缺失处理，不让整页读取失败
			log.ZWarn(ctx, "unmarshal timeline member failed", err, "conversationID", conversationID)
			continue
		}
		msgs = append(msgs, &msg)
	}
	c.metrics.IncrHit()
	return msgs, nil
}

// DelMessages 删除独立条目
func (c *msgCache) DelMessages(ctx context.Context, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(messageIDs))
	for _, id := range messageIDs {
		keys = append(keys, c.getMessageKey(id))
	}
	if err := deleteKeysBySlot(ctx, c.rdb, keys); err != nil {
		return err
	}
	c.metrics.IncrEviction(int64(len(keys)))
	return nil
}

// DelConversationMessages 整体失效会话时间线
// 编辑和删除都走这里：缓存投影无法廉价反映这类变更，
// 用一次未命中换取不读到陈旧内容
func (c *msgCache) DelConversationMessages(ctx context.Context, conversationID string) error {
	if err := c.rdb.Del(ctx, c.getTimelineKey(conversationID)).Err(); err != nil {
		return errs.Wrap(err)
	}
	c.metrics.IncrEviction(1)
	return nil
}
