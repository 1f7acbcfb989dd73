package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dtm-labs/rockscache"
	"github.com/openimsdk/tools/errs"
)

const (
	// rocksCacheTimeout 分布式锁过期与副本等待超时
	rocksCacheTimeout = 11 * time.Second
)

// GetRocksCacheOptions RocksCache默认配置
// 强一致模式防止缓存击穿，随机过期调整防止同批键同时失效造成雪崩
func GetRocksCacheOptions() *rockscache.Options {
	opts := rockscache.NewDefaultOptions()
	opts.LockExpire = rocksCacheTimeout
	opts.WaitReplicasTimeout = rocksCacheTimeout
	opts.StrongConsistency = true
	opts.RandomExpireAdjustment = 0.2
	return &opts
}

// getCache 单键cache-aside的通用实现
// 未命中时通过fn回源，结果序列化后回填缓存；
// 回源当次直接返回fn的结果，避免再反序列化一遍
func getCache[T any](ctx context.Context, rcClient *rockscache.Client, key string, expire time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var t T
	var write bool
	v, err := rcClient.Fetch2(ctx, key, expire, func() (s string, err error) {
		t, err = fn(ctx)
		if err != nil {
			return "", err
		}
		bs, err := json.Marshal(t)
		if err != nil {
			return "", errs.WrapMsg(err, "marshal failed")
		}
		write = true
		return string(bs), nil
	})
	if err != nil {
		return t, errs.Wrap(err)
	}
	if write {
		return t, nil
	}
	// 空值表示记录不存在
	if v == "" {
		return t, errs.ErrRecordNotFound.WrapMsg("cache is not found")
	}
	if err := json.Unmarshal([]byte(v), &t); err != nil {
		return t, errs.WrapMsg(err, "cache json.Unmarshal failed", "key", key, "value", v)
	}
	return t, nil
}

// tagDeleteCache RocksCache条目的批量标记删除
// 软删除避免删除与并发回填竞争出永久错误的合并状态
func tagDeleteCache(ctx context.Context, rcClient *rockscache.Client, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return errs.Wrap(rcClient.TagAsDeletedBatch2(ctx, keys))
}
