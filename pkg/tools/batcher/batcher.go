// Package batcher 按键分组的异步攒批器
// 输入端把数据放进聚合缓冲，按条数或时间间隔触发一次冲刷；
// 冲刷时按键分组，同组数据整组交给同一个工作协程，保证同键有序
package batcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/utils/idutil"
)

type Config struct {
	size     int           // 触发冲刷的聚合条数
	buffer   int           // 输入通道缓冲
	worker   int           // 工作协程数量
	interval time.Duration // 触发冲刷的时间间隔
}

type Option func(c *Config)

func WithSize(s int) Option {
	return func(c *Config) {
		c.size = s
	}
}

func WithBuffer(b int) Option {
	return func(c *Config) {
		c.buffer = b
	}
}

func WithWorker(w int) Option {
	return func(c *Config) {
		c.worker = w
	}
}

func WithInterval(i time.Duration) Option {
	return func(c *Config) {
		c.interval = i
	}
}

// Batcher 启动前必须装配Do、Key、Sharding三个函数
type Batcher[T any] struct {
	config *Config

	// Do 处理一个同键批次，在工作协程内执行
	Do func(ctx context.Context, channelID int, msg *Msg[T])
	// Key 从数据中提取分组键
	Key func(data *T) string
	// Sharding 键到工作协程的映射
	Sharding func(key string) int

	// 关闭用取消上下文广播而不是布尔标记，Put与Close并发安全
	globalCtx context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	input chan *T
	chans []chan *Msg[T]
	wait  sync.WaitGroup
}

func New[T any](opts ...Option) *Batcher[T] {
	config := &Config{
		size:     100,
		buffer:   500,
		worker:   4,
		interval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(config)
	}
	b := &Batcher[T]{config: config}
	b.globalCtx, b.cancel = context.WithCancel(context.Background())
	b.input = make(chan *T, config.buffer)
	return b
}

func (b *Batcher[T]) Start() error {
	if b.Do == nil {
		return errs.New("batcher Do function is required").Wrap()
	}
	if b.Key == nil {
		return errs.New("batcher Key function is required").Wrap()
	}
	if b.Sharding == nil {
		return errs.New("batcher Sharding function is required").Wrap()
	}
	b.chans = make([]chan *Msg[T], b.config.worker)
	for i := range b.chans {
		b.chans[i] = make(chan *Msg[T], b.config.buffer)
		b.wait.Add(1)
		go b.run(i, b.chans[i])
	}
	b.wait.Add(1)
	go b.scheduler()
	return nil
}

func (b *Batcher[T]) Put(ctx context.Context, data *T) error {
	if data == nil {
		return errs.New("batcher data is nil").Wrap()
	}
	select {
	case <-b.globalCtx.Done():
		return errs.New("batcher is closed").Wrap()
	default:
	}
	select {
	case <-b.globalCtx.Done():
		return errs.New("batcher is closed").Wrap()
	case <-ctx.Done():
		return ctx.Err()
	case b.input <- data:
		return nil
	}
}

func (b *Batcher[T]) scheduler() {
	ticker := time.NewTicker(b.config.interval)
	defer func() {
		ticker.Stop()
		for _, ch := range b.chans {
			close(ch)
		}
		b.wait.Done()
	}()

	count := 0
	groups := make(map[string][]*T)
	flush := func() {
		if count == 0 {
			return
		}
		triggerID := idutil.OperationIDGenerator()
		for key, vals := range groups {
			b.chans[b.Sharding(key)%b.config.worker] <- &Msg[T]{key: key, triggerID: triggerID, val: vals}
		}
		count = 0
		groups = make(map[string][]*T)
	}

	for {
		select {
		case data, ok := <-b.input:
			if !ok {
				flush()
				return
			}
			// nil是Close发出的关闭哨兵，冲刷剩余数据后退出
			if data == nil {
				flush()
				return
			}
			key := b.Key(data)
			groups[key] = append(groups[key], data)
			count++
			if count >= b.config.size {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (b *Batcher[T]) run(channelID int, ch <-chan *Msg[T]) {
	defer b.wait.Done()
	for msg := range ch {
		b.Do(context.Background(), channelID, msg)
	}
}

// Close 停止接收新数据并等待已入队的批次处理完
// 不直接close输入通道：与并发的Put竞争会在已关闭通道上发送而panic，
// 改为取消上下文拒绝后续Put，再投递nil哨兵让调度器自行收尾
func (b *Batcher[T]) Close() {
	b.closeOnce.Do(func() {
		b.cancel()
		b.input <- nil
	})
	b.wait.Wait()
}

// Msg 一次冲刷中同一个键的全部数据
type Msg[T any] struct {
	key       string
	triggerID string
	val       []*T
}

func (m *Msg[T]) Key() string {
	return m.key
}

// TriggerID 同一次冲刷的全部批次共享的追踪ID
func (m *Msg[T]) TriggerID() string {
	return m.triggerID
}

func (m *Msg[T]) Val() []*T {
	return m.val
}

func (m *Msg[T]) String() string {
	return fmt.Sprintf("trigger %s key %s %d items", m.triggerID, m.key, len(m.val))
}
