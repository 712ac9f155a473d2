// Package kafka relays outbox records to Kafka and consumes payment events.
package kafka

import (
	"context"
	"errors"

	"github.com/IBM/sarama"

	infraoutbox "staybook/internal/infra/outbox"
)

var ErrNoBrokers = errors.New("kafka: no brokers configured")

// NewConfig returns the sarama config shared by the producer and consumer.
func NewConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Version = sarama.V2_5_0_0
	return cfg
}

// Producer publishes one outbox message per call and waits for all in-sync
// replicas, so a returned nil means the record is durable on the broker.
type Producer struct {
	sync sarama.SyncProducer
}

func NewProducer(brokers []string, cfg *sarama.Config) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg == nil {
		cfg = NewConfig("staybook")
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Net.MaxOpenRequests = 1
	sync, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{sync: sync}, nil
}

var _ infraoutbox.Producer = (*Producer)(nil)

// Publish keys the message by aggregate id so all events of one booking land
// on the same partition in order.
func (p *Producer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hs := make([]sarama.RecordHeader, 0, len(headers)+1)
	for k, v := range headers {
		hs = append(hs, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	hs = append(hs, sarama.RecordHeader{Key: []byte("content-type"), Value: []byte("application/cloudevents+json")})
	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(payload),
		Headers: hs,
	}
	_, _, err := p.sync.SendMessage(msg)
	return err
}

func (p *Producer) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}
