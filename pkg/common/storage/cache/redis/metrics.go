// 缓存指标落盘与全量清理
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
	"github.com/redis/go-redis/v9"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/prommetrics"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache/cachekey"
)

// scanCount 全量清理时单次SCAN的页大小
const scanCount = 1000

// FlushMetrics 把进程内指标快照写入聚合哈希键
// 运维可以直接在缓存存储里查看命中情况，无需经过管理接口
func FlushMetrics(ctx context.Context, rdb redis.UniversalClient, snapshot prommetrics.MetricsSnapshot) error {
	return errs.Wrap(rdb.HSet(ctx, cachekey.GetMetricsKey(),
		"hits", snapshot.Hits,
		"misses", snapshot.Misses,
		"evictions", snapshot.Evictions,
		"hit_rate", strconv.FormatFloat(snapshot.HitRate, 'f', 4, 64),
		"flushed_at", time.Now().UnixMilli(),
	).Err())
}

// ClearAll 按稳定前缀清空全部缓存键
// 用SCAN分页遍历避免阻塞，删除按槽位分组批量执行；返回删除的键数量
func ClearAll(ctx context.Context, rdb redis.UniversalClient) (int64, error) {
	var total int64
	for _, prefix := range cachekey.AllPrefixes() {
		var cursor uint64
		for {
			keys, next, err := rdb.Scan(ctx, cursor, prefix+"*", scanCount).Result()
			if err != nil {
				return total, errs.WrapMsg(err, "scan cache keys failed", "prefix", prefix)
			}
			if len(keys) > 0 {
				if err := deleteKeysBySlot(ctx, rdb, keys); err != nil {
					return total, err
				}
				total += int64(len(keys))
			}
			if next == 0 {
				break
			}
			cursor = next
		}
	}
	log.ZInfo(ctx, "cache cleared", "deletedKeys", total)
	return total, nil
}
