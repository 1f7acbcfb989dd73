// Package local 会话摘要的进程内缓存层
// 包装共享缓存的ConversationCache：摘要点查先走本地极短TTL副本，
// 失效经Redis发布订阅广播到所有实例，其余操作原样透传
package local

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
	"github.com/redis/go-redis/v9"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache/cachekey"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/localcache"
)

// InvalidationChannel 本地缓存失效广播频道，载荷为JSON编码的键列表
const InvalidationChannel = "communication:local_invalidation"

// NewConversationCache 创建带本地层的会话缓存
// 启动一个订阅goroutine接收其他实例的失效广播，随ctx结束
func NewConversationCache(ctx context.Context, rdb redis.UniversalClient, shared cache.ConversationCache) cache.ConversationCache {
	c := &conversationLocalCache{
		ConversationCache: shared,
		rdb:               rdb,
	}
	c.local = localcache.New[*model.ConversationSummary](
		localcache.WithSlots(100, 2000),
		localcache.WithSuccessTTL(10*time.Second),
		localcache.WithFailedTTL(3*time.Second),
		localcache.WithDeleteFn(c.publishInvalidation),
	)
	go c.subscribe(ctx)
	return c
}

type conversationLocalCache struct {
	cache.ConversationCache
	rdb   redis.UniversalClient
	local localcache.Cache[*model.ConversationSummary]
}

func (c *conversationLocalCache) GetConversation(ctx context.Context, conversationID string, fn func(ctx context.Context) (*model.ConversationSummary, error)) (*model.ConversationSummary, error) {
	return c.local.Get(ctx, cachekey.GetConversationKey(conversationID), func(ctx context.Context) (*model.ConversationSummary, error) {
		return c.ConversationCache.GetConversation(ctx, conversationID, fn)
	})
}

func (c *conversationLocalCache) DelConversation(ctx context.Context, conversationIDs ...string) error {
	if err := c.ConversationCache.DelConversation(ctx, conversationIDs...); err != nil {
		return err
	}
	keys := make([]string, 0, len(conversationIDs))
	for _, conversationID := range conversationIDs {
		keys = append(keys, cachekey.GetConversationKey(conversationID))
	}
	c.local.Del(ctx, keys...)
	return nil
}

func (c *conversationLocalCache) publishInvalidation(ctx context.Context, keys ...string) {
	payload, err := json.Marshal(keys)
	if err != nil {
		log.ZError(ctx, "marshal invalidation keys failed", err)
		return
	}
	if err := c.rdb.Publish(ctx, InvalidationChannel, payload).Err(); err != nil {
		log.ZWarn(ctx, "publish local invalidation failed", err, "keys", keys)
	}
}

func (c *conversationLocalCache) subscribe(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.ZPanic(ctx, "local invalidation subscriber panic", errs.ErrPanic(r))
		}
	}()
	// Channel不随ctx取消自行关闭，必须持有PubSub在结束时Close掉
	sub := c.rdb.Subscribe(ctx, InvalidationChannel)
	go func() {
		<-ctx.Done()
		if err := sub.Close(); err != nil {
			log.ZWarn(ctx, "close invalidation subscription failed", err)
		}
	}()
	for message := range sub.Channel() {
		var keys []string
		if err := json.Unmarshal([]byte(message.Payload), &keys); err != nil {
			log.ZError(ctx, "unmarshal invalidation payload failed", err, "payload", message.Payload)
			continue
		}
		if len(keys) == 0 {
			continue
		}
		c.local.DelLocal(ctx, keys...)
	}
}
