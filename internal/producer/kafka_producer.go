package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"b3tr-store/internal/domain"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"
)

// publisher is the part of *kafka.Producer used here.
type publisher interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// PurchaseProducer publishes recorded purchases for the receipt consumer.
type PurchaseProducer struct {
	producer publisher
	topic    string
}

func New(servers, topic string) (*PurchaseProducer, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": servers,
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	log.WithField("topic", topic).Info("Kafka producer ready")
	return &PurchaseProducer{producer: p, topic: topic}, nil
}

// NotifyPurchase publishes info keyed by transaction id and waits for the delivery report.
func (p *PurchaseProducer) NotifyPurchase(ctx context.Context, info domain.PurchaseInfo) error {
	const op = "PurchaseProducer.NotifyPurchase"

	value, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	delivery := make(chan kafka.Event, 1)
	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(info.TransactionID),
		Value:          value,
	}, delivery)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("%s: unexpected delivery event %T", op, ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("%s: %w", op, m.TopicPartition.Error)
		}
	}

	log.WithFields(log.Fields{
		"topic":          p.topic,
		"transaction_id": info.TransactionID,
	}).Info("Purchase event published")
	return nil
}

// Close flushes outstanding messages and closes the producer.
func (p *PurchaseProducer) Close() {
	if n := p.producer.Flush(5000); n > 0 {
		log.WithField("pending", n).Warn("Kafka producer closed with undelivered messages")
	}
	p.producer.Close()
}
