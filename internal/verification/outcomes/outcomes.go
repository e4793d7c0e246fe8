// Package outcomes delivers final verification outcomes to downstream
// consumers such as withdrawal-limit gates.
package outcomes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"kycflow/internal/verification/models"
)

// KafkaPublisher produces one record per outcome, keyed by subject so a
// subject's outcomes stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(client *kgo.Client, topic string) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic}
}

// Publish blocks until the broker acknowledges the record.
func (p *KafkaPublisher) Publish(ctx context.Context, outcome *models.VerificationOutcome) error {
	value, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(outcome.SubjectID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "decision", Value: []byte(outcome.Decision)},
			{Key: "tier", Value: []byte(outcome.Tier)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce outcome %s: %w", outcome.SessionID, err)
	}
	return nil
}

// LogPublisher writes outcomes to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, outcome *models.VerificationOutcome) error {
	p.logger.InfoContext(ctx, "verification outcome",
		"session_id", outcome.SessionID,
		"subject_id", outcome.SubjectID,
		"tier", outcome.Tier,
		"decision", outcome.Decision,
		"aggregate_confidence", outcome.AggregateConfidence,
	)
	return nil
}

// Recorder keeps published outcomes in memory.
type Recorder struct {
	mu       sync.Mutex
	outcomes []*models.VerificationOutcome
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, outcome *models.VerificationOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome.Clone())
	return nil
}

func (r *Recorder) Outcomes() []*models.VerificationOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.VerificationOutcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}
