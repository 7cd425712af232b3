package consumer

import (
	"context"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"
)

type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) error
}

// eventSource is the part of *kafka.Consumer the loop uses.
type eventSource interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	Poll(timeoutMs int) kafka.Event
	Close() error
}

type KafkaConsumer struct {
	consumer eventSource
	topic    string
	handler  MessageHandler
}

// New creates a consumer in groupID subscribed to topic.
func New(servers, groupID, topic string, handler MessageHandler) (*KafkaConsumer, error) {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers": servers,
		"group.id":          groupID,
		"auto.offset.reset": "earliest",
	}
	log.WithField("config", fmt.Sprintf("%+v", configMap)).Debug("Kafka consumer config")

	c, err := kafka.NewConsumer(configMap)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	kc, err := newKafkaConsumer(c, topic, handler)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return kc, nil
}

func newKafkaConsumer(consumer eventSource, topic string, handler MessageHandler) (*KafkaConsumer, error) {
	if err := consumer.SubscribeTopics([]string{topic}, nil); err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	log.WithField("topic", topic).Info("Subscribed to Kafka topic")
	return &KafkaConsumer{consumer: consumer, topic: topic, handler: handler}, nil
}

// Start polls until ctx is done or the broker reports a fatal error.
// Handler errors are logged and the message is skipped.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			log.Info("Kafka consumer stopping due to context cancellation")
			return ctx.Err()
		default:
			ev := c.consumer.Poll(100)
			if ev == nil {
				continue
			}

			switch e := ev.(type) {
			case *kafka.Message:
				if err := c.handler.HandleMessage(ctx, e.Value); err != nil {
					log.WithFields(log.Fields{
						"topic": c.topic,
						"key":   string(e.Key),
					}).WithError(err).Error("Failed to handle message")
				}
			case kafka.Error:
				log.WithError(e).Error("Kafka error")
				if e.IsFatal() {
					return e
				}
			}
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.consumer.Close()
}
