package localcache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// lruItem 懒惰过期条目
// 不用定时器清理，访问时比对过期毫秒值；条目级锁让同一key的
// 并发未命中只回源一次，其余调用方等待结果
type lruItem[V any] struct {
	lock    sync.Mutex
	expires int64
	err     error
	value   V
}

func newLazyLRU[V any](size int, successTTL, failedTTL time.Duration) *lazyLRU[V] {
	core, err := simplelru.NewLRU[string, *lruItem[V]](size, nil)
	if err != nil {
		panic(err)
	}
	return &lazyLRU[V]{
		core:       core,
		successTTL: successTTL,
		failedTTL:  failedTTL,
	}
}

type lazyLRU[V any] struct {
	lock       sync.Mutex
	core       *simplelru.LRU[string, *lruItem[V]]
	successTTL time.Duration
	failedTTL  time.Duration
}

func (x *lazyLRU[V]) Get(key string, fetch func() (V, error)) (V, error) {
	x.lock.Lock()
	v, ok := x.core.Get(key)
	if ok {
		x.lock.Unlock()
		v.lock.Lock()
		if v.expires > time.Now().UnixMilli() {
			value, err := v.value, v.err
			v.lock.Unlock()
			return value, err
		}
	} else {
		v = &lruItem[V]{}
		x.core.Add(key, v)
		v.lock.Lock()
		x.lock.Unlock()
	}
	defer v.lock.Unlock()
	// 等锁期间可能已有别的goroutine回源完成
	if v.expires > time.Now().UnixMilli() {
		return v.value, v.err
	}
	v.value, v.err = fetch()
	if v.err == nil {
		v.expires = time.Now().Add(x.successTTL).UnixMilli()
	} else {
		v.expires = time.Now().Add(x.failedTTL).UnixMilli()
	}
	return v.value, v.err
}

func (x *lazyLRU[V]) Del(key string) bool {
	x.lock.Lock()
	defer x.lock.Unlock()
	return x.core.Remove(key)
}
