// Package publisher ships recorded attendance entries to audit sinks.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/okian/hallpass/internal/domain/model"
	"github.com/okian/hallpass/pkg/logger"
)

const (
	defaultTopic          = "hallpass.attendance"
	defaultProduceTimeout = 5 * time.Second
)

// record is the wire form of an entry on the topic.
type record struct {
	ID           string `json:"id"`
	CredentialID string `json:"uid"`
	Status       string `json:"status"`
	Reason       string `json:"reason"`
	TapType      string `json:"tap_type"`
	Gate         string `json:"gate_id"`
	TimestampMs  int64  `json:"timestamp_ms"`
	SnapshotRef  string `json:"snapshot_url,omitempty"`
}

// Kafka produces entries to a topic keyed by gate, so each gate's entries
// stay ordered within one partition.
type Kafka struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
	breaker *breaker
	logger  logger.Logger
}

// KafkaOption applies a configuration option to the Kafka publisher.
type KafkaOption func(*kafkaSettings)

type kafkaSettings struct {
	topic     string
	timeout   time.Duration
	threshold int
	cooldown  time.Duration
	clientID  string
	logger    logger.Logger
}

// WithTopic sets the destination topic.
func WithTopic(topic string) KafkaOption {
	return func(s *kafkaSettings) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithProduceTimeout bounds each synchronous produce.
func WithProduceTimeout(d time.Duration) KafkaOption {
	return func(s *kafkaSettings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCircuitBreaker opens the circuit after threshold consecutive failures
// for cooldown.
func WithCircuitBreaker(threshold int, cooldown time.Duration) KafkaOption {
	return func(s *kafkaSettings) {
		s.threshold = threshold
		s.cooldown = cooldown
	}
}

// WithClientID sets the Kafka client id.
func WithClientID(id string) KafkaOption {
	return func(s *kafkaSettings) {
		if id != "" {
			s.clientID = id
		}
	}
}

// WithKafkaLogger sets a custom logger.
func WithKafkaLogger(l logger.Logger) KafkaOption {
	return func(s *kafkaSettings) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewKafka creates a producer for brokers. It does not dial until the first
// publish.
func NewKafka(brokers []string, opts ...KafkaOption) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}

	s := kafkaSettings{
		topic:    defaultTopic,
		timeout:  defaultProduceTimeout,
		clientID: "hallpass",
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("kafka")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(s.topic),
		kgo.ClientID(s.clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression(), kgo.NoCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	return &Kafka{
		client:  client,
		topic:   s.topic,
		timeout: s.timeout,
		breaker: newBreaker(s.threshold, s.cooldown, nil),
		logger:  s.logger,
	}, nil
}

// Name implements worker.Publisher.
func (k *Kafka) Name() string { return "kafka" }

// Publish produces e and waits for the broker ack.
func (k *Kafka) Publish(ctx context.Context, e model.LogEntry) error { //nolint:gocritic // hugeParam: entries travel by value
	if !k.breaker.allow() {
		return ErrCircuitOpen
	}

	rec, err := encode(e)
	if err != nil {
		return err
	}
	rec.Topic = k.topic

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	if err := k.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		k.breaker.failure()
		return fmt.Errorf("produce to %s: %w", k.topic, err)
	}
	k.breaker.success()
	return nil
}

// Close flushes buffered records and closes the client.
func (k *Kafka) Close(ctx context.Context) error {
	if err := k.client.Flush(ctx); err != nil {
		k.logger.Warn(ctx, "kafka flush", logger.Error(err))
	}
	k.client.Close()
	return nil
}

func encode(e model.LogEntry) (*kgo.Record, error) { //nolint:gocritic // hugeParam: entries travel by value
	value, err := json.Marshal(record{
		ID:           e.ID,
		CredentialID: e.CredentialID,
		Status:       string(e.Outcome),
		Reason:       e.Reason,
		TapType:      string(e.TapType),
		Gate:         e.Gate,
		TimestampMs:  e.Timestamp.UnixMilli(),
		SnapshotRef:  e.SnapshotRef,
	})
	if err != nil {
		return nil, fmt.Errorf("encode entry %s: %w", e.ID, err)
	}
	return &kgo.Record{
		Key:       []byte(e.Gate),
		Value:     value,
		Timestamp: e.Timestamp,
		Headers: []kgo.RecordHeader{
			{Key: "status", Value: []byte(e.Outcome)},
		},
	}, nil
}
