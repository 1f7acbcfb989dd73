package push

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/openimsdk/tools/log"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/localcache"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/tools/batcher"
)

// NewBatchingEmitter 异步攒批的事件发射器
// 写路径只把事件入队即返回；批处理按userID分组分片，
// 同一用户的事件始终走同一个工作协程，保持下发顺序
func NewBatchingEmitter(inner Emitter) (Emitter, error) {
	e := &batchingEmitter{inner: inner}
	e.batcher = batcher.New[Event](
		batcher.WithSize(100),
		batcher.WithBuffer(500),
		batcher.WithWorker(4),
		batcher.WithInterval(100*time.Millisecond),
	)
	e.batcher.Key = func(event *Event) string { return event.UserID }
	// FNV-64高位为1的键直接转int是负数，截断到uint32保证分片索引非负
	e.batcher.Sharding = func(key string) int { return int(uint32(localcache.StringHash(key))) }
	e.batcher.Do = e.deliver
	if err := e.batcher.Start(); err != nil {
		return nil, err
	}
	return e, nil
}

type batchingEmitter struct {
	inner   Emitter
	batcher *batcher.Batcher[Event]
}

func (e *batchingEmitter) deliver(ctx context.Context, channelID int, msg *batcher.Msg[Event]) {
	for _, event := range msg.Val() {
		if err := e.inner.EmitToUser(ctx, event.UserID, event.Type, event.Payload); err != nil {
			log.ZWarn(ctx, "deliver batched event failed", err,
				"userID", msg.Key(), "event", event.Type, "triggerID", msg.TriggerID())
		}
	}
}

func (e *batchingEmitter) EmitToUser(ctx context.Context, userID, event string, payload any) error {
	return e.batcher.Put(ctx, &Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      event,
		Payload:   payload,
		EmittedAt: time.Now(),
	})
}

func (e *batchingEmitter) EmitToUsers(ctx context.Context, userIDs []string, event string, payload any) error {
	for _, userID := range userIDs {
		if err := e.EmitToUser(ctx, userID, event, payload); err != nil {
			return err
		}
	}
	return nil
}

func (e *batchingEmitter) Close() error {
	e.batcher.Close()
	return e.inner.Close()
}
