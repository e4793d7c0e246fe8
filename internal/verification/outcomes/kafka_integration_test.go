//go:build integration

package outcomes

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"kycflow/internal/platform/config"
	"kycflow/internal/platform/kafka"
	"kycflow/internal/verification/models"
	"kycflow/pkg/testutil/containers"
)

func TestKafkaPublisher(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	t.Cleanup(func() { _ = rp.Container.Terminate(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const topic = "verification-outcomes-test"
	producer, err := kafka.NewProducer(config.KafkaConfig{Brokers: []string{rp.Broker}, Topic: topic})
	require.NoError(t, err)
	require.NotNil(t, producer)
	t.Cleanup(producer.Close)
	require.NoError(t, kafka.EnsureTopic(ctx, producer, topic, 1, 1))
	require.NoError(t, kafka.EnsureTopic(ctx, producer, topic, 1, 1), "second call is a no-op")

	outcome := sampleOutcome()
	require.NoError(t, NewKafkaPublisher(producer, topic).Publish(ctx, outcome))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	var records []*kgo.Record
	for len(records) == 0 {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, ctx.Err())
		fetches.EachRecord(func(r *kgo.Record) { records = append(records, r) })
	}

	require.Len(t, records, 1)
	assert.Equal(t, "0xabc", string(records[0].Key))
	var got models.VerificationOutcome
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, outcome.SessionID, got.SessionID)
	assert.Equal(t, models.DecisionNeedsManualReview, got.Decision)
}
