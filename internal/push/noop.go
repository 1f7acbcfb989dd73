package push

import "context"

// NewNoopEmitter 空实现，未配置Kafka时使用
func NewNoopEmitter() Emitter {
	return noopEmitter{}
}

type noopEmitter struct{}

func (noopEmitter) EmitToUser(ctx context.Context, userID, event string, payload any) error {
	return nil
}

func (noopEmitter) EmitToUsers(ctx context.Context, userIDs []string, event string, payload any) error {
	return nil
}

func (noopEmitter) Close() error { return nil }
