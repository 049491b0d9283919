// Package kafka publishes ledger events to Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/givemart/givemart"
	"github.com/segmentio/kafka-go"
)

var _ givemart.EventPublisher = &Publisher{}

type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
	}}
}

// PublishPayout writes ev keyed by nonprofit, so the events of a nonprofit
// stay ordered within their partition.
func (p *Publisher) PublishPayout(ctx context.Context, ev *givemart.PayoutEvent) error {
	msg, err := payoutMessage(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write payout event to kafka: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func payoutMessage(ev *givemart.PayoutEvent) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal payout event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.Itoa(ev.NonprofitID)),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
			{Key: "payout-reference", Value: []byte(ev.Reference.String())},
		},
	}, nil
}
