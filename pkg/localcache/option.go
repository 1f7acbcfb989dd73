package localcache

import (
	"context"
	"time"
)

func defaultOption() *option {
	return &option{
		slotNum:    100,
		slotSize:   2000,
		successTTL: 10 * time.Second,
		failedTTL:  3 * time.Second,
	}
}

type option struct {
	slotNum    int
	slotSize   int
	successTTL time.Duration
	failedTTL  time.Duration
	delFn      []func(ctx context.Context, keys ...string)
}

type Option func(o *option)

// WithSlots 槽位数量与单槽容量，多槽分散锁竞争
func WithSlots(num, size int) Option {
	return func(o *option) {
		if num > 0 {
			o.slotNum = num
		}
		if size > 0 {
			o.slotSize = size
		}
	}
}

// WithSuccessTTL 成功结果的本地存活时间
func WithSuccessTTL(ttl time.Duration) Option {
	return func(o *option) {
		if ttl > 0 {
			o.successTTL = ttl
		}
	}
}

// WithFailedTTL 失败结果的本地存活时间，应显著短于成功TTL
func WithFailedTTL(ttl time.Duration) Option {
	return func(o *option) {
		if ttl > 0 {
			o.failedTTL = ttl
		}
	}
}

// WithDeleteFn 注册Del时的回调，用于跨实例失效广播
func WithDeleteFn(fn func(ctx context.Context, keys ...string)) Option {
	return func(o *option) {
		o.delFn = append(o.delFn, fn)
	}
}
