// Package redis 读路径缓存的Redis实现
package redis

import (
	"context"

	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize       = 50 // 每批处理的键数量
	defaultConcurrentLimit = 3  // 并发协程上限
)

// groupKeysBySlot 按Redis集群哈希槽对键分组
// 集群模式下同一槽位的键位于同一节点，批量操作只需一次网络请求；
// 单机/哨兵模式下所有键归入槽位0，上层无需区分部署形态
func groupKeysBySlot(ctx context.Context, rdb redis.UniversalClient, keys []string) (map[int64][]string, error) {
	slots := make(map[int64][]string)
	clusterClient, isCluster := rdb.(*redis.ClusterClient)
	if isCluster && len(keys) > 1 {
		pipe := clusterClient.Pipeline()
		cmds := make([]*redis.IntCmd, len(keys))
		for i, key := range keys {
			cmds[i] = pipe.ClusterKeySlot(ctx, key)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, errs.WrapMsg(err, "get slot err")
		}
		for i, cmd := range cmds {
			slot, err := cmd.Result()
			if err != nil {
				return nil, errs.WrapMsg(err, "get slot err", "key", keys[i])
			}
			slots[slot] = append(slots[slot], keys[i])
		}
	} else {
		slots[0] = keys
	}
	return slots, nil
}

// splitIntoBatches 把键列表按batchSize切分
func splitIntoBatches(keys []string, batchSize int) [][]string {
	var batches [][]string
	for batchSize < len(keys) {
		keys, batches = keys[batchSize:], append(batches, keys[0:batchSize:batchSize])
	}
	return append(batches, keys)
}

// processKeysBySlot 槽位分组后并发执行processFunc
// 用errgroup限制并发数，任一批次失败即整体返回错误
func processKeysBySlot(ctx context.Context, rdb redis.UniversalClient, keys []string,
	processFunc func(ctx context.Context, slot int64, keys []string) error) error {
	slots, err := groupKeysBySlot(ctx, rdb, keys)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultConcurrentLimit)
	for slot, singleSlotKeys := range slots {
		for _, batch := range splitIntoBatches(singleSlotKeys, defaultBatchSize) {
			slot, batch := slot, batch
			g.Go(func() error {
				if err := processFunc(ctx, slot, batch); err != nil {
					log.ZWarn(ctx, "batch processFunc failed", err, "slot", slot, "keys", batch)
					return err
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// deleteKeysBySlot 槽位优化的批量DEL
// 单键直接删除，多键走槽位分组，避免小操作的分槽开销
func deleteKeysBySlot(ctx context.Context, rdb redis.UniversalClient, keys []string) error {
	switch len(keys) {
	case 0:
		return nil
	case 1:
		return errs.Wrap(rdb.Del(ctx, keys[0]).Err())
	default:
		return processKeysBySlot(ctx, rdb, keys, func(ctx context.Context, slot int64, keys []string) error {
			return errs.Wrap(rdb.Del(ctx, keys...).Err())
		})
	}
}
