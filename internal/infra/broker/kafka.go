package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// kafka.Writer のうち使う分
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// outboxリレー用。同期で書いて、成功したときだけ送信済みにさせる
type KafkaPublisher struct {
	w   messageWriter
	now func() time.Time
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,
		},
		now: time.Now,
	}
}

// topicはメッセージごと、keyは同じ注文が同じパーティションに入るように
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	err := p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  p.now(),
		Headers: []kafka.Header{
			{Key: "dedupe-key", Value: []byte(key)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
