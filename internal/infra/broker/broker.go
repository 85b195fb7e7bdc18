package broker

import (
	"fmt"

	"keystore/internal/config"
	"keystore/internal/usecase"
)

type Publisher interface {
	usecase.Publisher
	Close() error
}

// BROKER_KINDで送信先を選ぶ
func New(cfg config.Broker) (Publisher, error) {
	switch cfg.Kind {
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers), nil
	case "amqp":
		return NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Kind)
	}
}
