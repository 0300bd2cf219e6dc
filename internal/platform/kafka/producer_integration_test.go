//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"tradesync/internal/platform/config"
	"tradesync/internal/platform/kafka"
	audit "tradesync/pkg/platform/audit"
	"tradesync/pkg/testutil/containers"
)

type ProducerSuite struct {
	suite.Suite
	broker   *containers.RedpandaContainer
	producer *kafka.Producer
}

func TestProducerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerSuite))
}

func (s *ProducerSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T())
	producer, err := kafka.NewProducer(config.Kafka{Brokers: []string{s.broker.Broker}, Topic: "tradesync.audit"})
	s.Require().NoError(err)
	s.producer = producer
	s.Require().NoError(s.producer.EnsureTopic(context.Background(), 1, 1))
}

func (s *ProducerSuite) TearDownSuite() {
	s.producer.Close()
}

func (s *ProducerSuite) TestAppendPublishesJSON() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	event := audit.Event{
		ID:       "evt-1",
		Type:     audit.EventRunCompleted,
		Category: audit.CategoryOperations,
		RunID:    "run-1",
		Counts:   map[string]int{"inserted": 3},
	}
	s.Require().NoError(s.producer.Append(ctx, event))
	s.Require().NoError(s.producer.EnsureTopic(ctx, 1, 1), "existing topic is not an error")

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker.Broker),
		kgo.ConsumeTopics("tradesync.audit"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().NotEmpty(records)
	s.Equal("run-1", string(records[0].Key))

	var got audit.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(event.Type, got.Type)
	s.Equal(3, got.Counts["inserted"])
}
