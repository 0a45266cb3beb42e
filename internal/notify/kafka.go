package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes each alert as a JSON record keyed by apply URL.
type Kafka struct {
	w     messageWriter
	topic string
	now   func() time.Time
}

func NewKafka(broker, topic string) *Kafka {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return NewKafkaWithWriter(w, topic)
}

func NewKafkaWithWriter(w messageWriter, topic string) *Kafka {
	return &Kafka{w: w, topic: topic, now: time.Now}
}

func (k *Kafka) Name() string { return "kafka" }

type kafkaRecord struct {
	Alert
	At time.Time `json:"at"`
}

func (k *Kafka) Notify(ctx context.Context, a Alert) error {
	// Kafka has no cheap reachability check; the self-test record is
	// published like any other alert with test=true.
	b, err := json.Marshal(kafkaRecord{Alert: a, At: k.now().UTC()})
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(a.ApplyURL), Value: b}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.w.Close()
}
