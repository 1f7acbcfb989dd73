// Package localcache 进程内只读缓存
// 在共享缓存之上再挡一层极短TTL的本地副本，吸收同一实例内的重复读；
// 失效通过删除回调广播给其他实例，本地条目过期兜底
package localcache

import (
	"context"
	"hash/fnv"
)

// Cache 本地缓存
type Cache[V any] interface {
	// Get 取本地副本，缺失或过期时经fetch回源
	// 失败结果同样短暂缓存，避免持续打穿到回源路径
	Get(ctx context.Context, key string, fetch func(ctx context.Context) (V, error)) (V, error)

	// Del 删除本地条目并触发删除回调（跨实例广播入口）
	Del(ctx context.Context, keys ...string)

	// DelLocal 仅删除本地条目，广播的接收端使用
	DelLocal(ctx context.Context, keys ...string)
}

// StringHash FNV哈希，槽位分片与分片路由共用
func StringHash(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return h.Sum64()
}

// New 创建本地缓存
func New[V any](opts ...Option) Cache[V] {
	opt := defaultOption()
	for _, o := range opts {
		o(opt)
	}
	c := &localCache[V]{opt: opt}
	if opt.slotNum <= 1 {
		c.slots = []*lazyLRU[V]{newLazyLRU[V](opt.slotSize, opt.successTTL, opt.failedTTL)}
	} else {
		c.slots = make([]*lazyLRU[V], opt.slotNum)
		for i := range c.slots {
			c.slots[i] = newLazyLRU[V](opt.slotSize, opt.successTTL, opt.failedTTL)
		}
	}
	return c
}

type localCache[V any] struct {
	opt   *option
	slots []*lazyLRU[V]
}

func (c *localCache[V]) slot(key string) *lazyLRU[V] {
	if len(c.slots) == 1 {
		return c.slots[0]
	}
	return c.slots[StringHash(key)%uint64(len(c.slots))]
}

func (c *localCache[V]) Get(ctx context.Context, key string, fetch func(ctx context.Context) (V, error)) (V, error) {
	return c.slot(key).Get(key, func() (V, error) {
		return fetch(ctx)
	})
}

func (c *localCache[V]) Del(ctx context.Context, keys ...string) {
	c.DelLocal(ctx, keys...)
	for _, fn := range c.opt.delFn {
		fn(ctx, keys...)
	}
}

func (c *localCache[V]) DelLocal(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.slot(key).Del(key)
	}
}
