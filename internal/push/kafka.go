package push

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
)

// NewKafkaEmitter 基于Kafka同步生产者的事件发射器
// 以userID为消息key做hash分区，同一用户的事件保持有序
func NewKafkaEmitter(brokers []string, topic string) (Emitter, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "create kafka producer failed", "brokers", brokers)
	}
	return &kafkaEmitter{producer: producer, topic: topic}, nil
}

type kafkaEmitter struct {
	producer sarama.SyncProducer
	topic    string
}

func (e *kafkaEmitter) EmitToUser(ctx context.Context, userID, event string, payload any) error {
	data, err := json.Marshal(&Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      event,
		Payload:   payload,
		EmittedAt: time.Now(),
	})
	if err != nil {
		return errs.WrapMsg(err, "marshal event failed", "event", event)
	}
	partition, offset, err := e.producer.SendMessage(&sarama.ProducerMessage{
		Topic: e.topic,
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return errs.WrapMsg(err, "send event failed", "event", event, "userID", userID)
	}
	log.ZDebug(ctx, "event emitted", "event", event, "userID", userID, "partition", partition, "offset", offset)
	return nil
}

func (e *kafkaEmitter) EmitToUsers(ctx context.Context, userIDs []string, event string, payload any) error {
	for _, userID := range userIDs {
		if err := e.EmitToUser(ctx, userID, event, payload); err != nil {
			return err
		}
	}
	return nil
}

func (e *kafkaEmitter) Close() error {
	return errs.Wrap(e.producer.Close())
}
