//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	id "vericore/pkg/domain"
	audit "vericore/pkg/platform/audit"
	"vericore/pkg/platform/audit/store/kafka"
	"vericore/pkg/testutil/containers"
)

type SinkSuite struct {
	suite.Suite
	broker string
}

func TestSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(SinkSuite))
}

func (s *SinkSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
}

func (s *SinkSuite) TestAppendProducesKeyedRecord() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "audit-test-" + id.NewSessionID().String()
	sink, err := kafka.New([]string{s.broker}, topic)
	s.Require().NoError(err)
	defer sink.Close()

	s.Require().NoError(sink.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(sink.EnsureTopic(ctx, 1, 1), "second call is a no-op")

	sessionID := id.NewSessionID()
	err = sink.Append(ctx, audit.Event{
		SessionID: sessionID,
		Subject:   "KYC-01234",
		Action:    string(audit.EventSessionFinalized),
		Decision:  "Approved",
		Timestamp: time.Now(),
	})
	s.Require().NoError(err)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().NoError(fetches.Err())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal(sessionID.String(), string(records[0].Key))

	var got map[string]any
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal("session_finalized", got["action"])
	s.Equal("compliance", got["category"])
	s.Equal("KYC-01234", got["subject"])
}
