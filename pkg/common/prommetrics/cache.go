// Package prommetrics 缓存层的运行指标
// 进程内原子计数器供管理接口快照使用，同时镜像到Prometheus计数器；
// 这是并发模型中除缓存客户端之外唯一的进程内共享可变状态
package prommetrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHitCounter 缓存命中总数
	CacheHitCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hockeyhub_communication_cache_hits_total",
		Help: "Total cache hits on the communication read path",
	})

	// CacheMissCounter 缓存未命中总数
	CacheMissCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hockeyhub_communication_cache_misses_total",
		Help: "Total cache misses on the communication read path",
	})

	// CacheEvictionCounter 缓存淘汰/失效总数
	CacheEvictionCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hockeyhub_communication_cache_evictions_total",
		Help: "Total cache entries evicted or invalidated",
	})
)

// CacheMetrics 进程内命中/未命中计数器
// 全部以原子操作更新，读写路径不持有任何锁
type CacheMetrics struct {
	hits      int64
	misses    int64
	evictions int64
}

// NewCacheMetrics 创建指标收集器
func NewCacheMetrics() *CacheMetrics {
	return &CacheMetrics{}
}

// IncrHit 记录一次命中
func (m *CacheMetrics) IncrHit() {
	atomic.AddInt64(&m.hits, 1)
	CacheHitCounter.Inc()
}

// IncrMiss 记录一次未命中
func (m *CacheMetrics) IncrMiss() {
	atomic.AddInt64(&m.misses, 1)
	CacheMissCounter.Inc()
}

// IncrEviction 记录n条淘汰
func (m *CacheMetrics) IncrEviction(n int64) {
	if n <= 0 {
		return
	}
	atomic.AddInt64(&m.evictions, n)
	CacheEvictionCounter.Add(float64(n))
}

// MetricsSnapshot 管理接口返回的指标快照
type MetricsSnapshot struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// Snapshot 读取当前快照
func (m *CacheMetrics) Snapshot() MetricsSnapshot {
	hits := atomic.LoadInt64(&m.hits)
	misses := atomic.LoadInt64(&m.misses)
	snapshot := MetricsSnapshot{
		Hits:      hits,
		Misses:    misses,
		Evictions: atomic.LoadInt64(&m.evictions),
	}
	if total := hits + misses; total > 0 {
		snapshot.HitRate = float64(hits) / float64(total)
	}
	return snapshot
}

// Reset 清零计数器（仅管理接口全量清缓存时使用）
func (m *CacheMetrics) Reset() {
	atomic.StoreInt64(&m.hits, 0)
	atomic.StoreInt64(&m.misses, 0)
	atomic.StoreInt64(&m.evictions, 0)
}
