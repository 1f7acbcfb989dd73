// 在线状态与输入中指示的Redis实现
//
// 缓存结构：
// - presence:{user}   状态快照JSON条目，短TTL
// - typing:{conv}     有序集合，member为用户ID，score为写入时刻毫秒值
//
// 输入中集合的过期是双保险：集合级绝对TTL防闲置集合堆积，
// 读取时的score截断防一个持续被刷新的集合里残留早已停止输入的成员。
// 底层尚未驱逐的过期成员一律视为不存在。
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/openimsdk/tools/errs"
	"github.com/redis/go-redis/v9"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache/cachekey"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

const (
	// DefaultTypingWindow 输入中指示的有效窗口
	DefaultTypingWindow = time.Second * 10

	// presenceTimeout 状态快照的TTL
	// 快照过期只意味着"未知"，上层把缺失快照判定为offline
	presenceTimeout = time.Minute * 5
)

// NewPresenceCache 创建在线状态缓存实例
// typingWindow小于等于0时使用默认窗口
func NewPresenceCache(rdb redis.UniversalClient, typingWindow time.Duration) cache.PresenceCache {
	if typingWindow <= 0 {
		typingWindow = DefaultTypingWindow
	}
	return &presenceCache{rdb: rdb, typingWindow: typingWindow}
}

type presenceCache struct {
	rdb          redis.UniversalClient
	typingWindow time.Duration
}

func (c *presenceCache) getPresenceKey(userID string) string {
	return cachekey.GetPresenceKey(userID)
}

func (c *presenceCache) getTypingKey(conversationID string) string {
	return cachekey.GetTypingKey(conversationID)
}

// SetUserTyping 把用户加入会话输入中集合
// score为当前毫秒时间戳，整个集合设置两倍窗口的绝对过期
func (c *presenceCache) SetUserTyping(ctx context.Context, conversationID, userID string) error {
	key := c.getTypingKey(conversationID)
	pipe := c.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: userID,
	})
	pipe.Expire(ctx, key, c.typingWindow*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(err)
	}
	return nil
}

// GetTypingUsers 返回仍在窗口内的输入中用户
// 先删score早于截断点的成员再取剩余，返回结果不含任何过期成员
func (c *presenceCache) GetTypingUsers(ctx context.Context, conversationID string) ([]string, error) {
	key := c.getTypingKey(conversationID)
	cutoff := time.Now().Add(-c.typingWindow).UnixMilli()
	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	members := pipe.ZRange(ctx, key, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errs.Wrap(err)
	}
	return members.Val(), nil
}

// SetUserPresence 写入状态快照
func (c *presenceCache) SetUserPresence(ctx context.Context, presence *model.PresenceSnapshot) error {
	data, err := json.Marshal(presence)
	if err != nil {
		return errs.WrapMsg(err, "marshal presence failed", "userID", presence.UserID)
	}
	return errs.Wrap(c.rdb.Set(ctx, c.getPresenceKey(presence.UserID), data, presenceTimeout).Err())
}

// GetUserPresence 读取状态快照
func (c *presenceCache) GetUserPresence(ctx context.Context, userID string) (*model.PresenceSnapshot, error) {
	data, err := c.rdb.Get(ctx, c.getPresenceKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errs.ErrRecordNotFound.WrapMsg("presence not cached", "userID", userID)
		}
		return nil, errs.Wrap(err)
	}
	var presence model.PresenceSnapshot
	if err := json.Unmarshal(data, &presence); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal presence failed", "userID", userID)
	}
	return &presence, nil
}
