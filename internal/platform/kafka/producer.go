// Package kafka forwards run audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"tradesync/internal/platform/config"
	audit "tradesync/pkg/platform/audit"
)

// ErrCircuitOpen is returned by Append while the broker is considered down.
var ErrCircuitOpen = errors.New("kafka producer circuit open")

// Producer is an audit.Store that publishes each event as one JSON record
// keyed by run ID.
type Producer struct {
	client  *kgo.Client
	topic   string
	logger  *slog.Logger
	breaker *breaker
	timeout time.Duration
}

type Option func(*Producer)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) {
		p.logger = logger
	}
}

// WithBreaker tunes how many consecutive failures open the circuit and for
// how long.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(p *Producer) {
		p.breaker = newBreaker(threshold, cooldown)
	}
}

func NewProducer(cfg config.Kafka, opts ...Option) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "tradesync"
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p := &Producer{
		client:  client,
		topic:   cfg.Topic,
		logger:  slog.Default(),
		breaker: newBreaker(5, 30*time.Second),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	admin := kadm.NewClient(p.client)
	resp, err := admin.CreateTopics(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Append implements audit.Store.
func (p *Producer) Append(ctx context.Context, event audit.Event) error {
	if !p.breaker.allow() {
		return ErrCircuitOpen
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.RunID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(event.Type)},
			{Key: "category", Value: []byte(event.Category)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.breaker.failure()
		return fmt.Errorf("produce audit event %s: %w", event.Type, err)
	}
	p.breaker.success()
	return nil
}

// Ping checks that at least one broker answers.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Producer) Close() {
	p.client.Close()
}
