package global

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Default topic names for the learning event streams.
const (
	DefaultAcceptTopic   = "mixctl.corrections.accepted"
	DefaultPromotedTopic = "mixctl.dictionary.promoted"
)

// KafkaReporter publishes accept events to the aggregation backend's topic.
// With no brokers configured it runs in log-only mode: events are logged and
// dropped, so a console without cloud connectivity keeps working.
type KafkaReporter struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	log     *slog.Logger
}

var _ Reporter = (*KafkaReporter)(nil)

// NewKafkaReporter returns a reporter writing to topic on brokers. An empty
// broker list yields a log-only reporter.
func NewKafkaReporter(brokers []string, topic string, log *slog.Logger) *KafkaReporter {
	if log == nil {
		log = slog.Default()
	}
	if topic == "" {
		topic = DefaultAcceptTopic
	}
	if len(brokers) == 0 {
		log.Info("global: kafka disabled, accept events log-only")
		return &KafkaReporter{topic: topic, log: log}
	}

	return &KafkaReporter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
		},
		topic:   topic,
		enabled: true,
		log:     log,
	}
}

// ReportAccept implements [Reporter]. Events are keyed by the original word
// so all accepts for one pair land on one partition.
func (r *KafkaReporter) ReportAccept(ctx context.Context, a Accept) error {
	if a.AcceptedAt.IsZero() {
		a.AcceptedAt = time.Now()
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("global: encode accept: %w", err)
	}

	r.log.Debug("global: accept event",
		"original", a.Original,
		"replacement", a.Replacement,
		"hardware_verified", a.HardwareVerified)
	if !r.enabled {
		return nil
	}

	err = r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(a.Original),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("global: publish accept: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (r *KafkaReporter) Close() error {
	if r.writer == nil {
		return nil
	}
	return r.writer.Close()
}

// PromotedAnnouncer publishes promoted-pair announcements so client fleets
// learn about new shared-dictionary entries without polling. Like
// [KafkaReporter] it degrades to log-only with no brokers configured.
type PromotedAnnouncer struct {
	writer  *kafka.Writer
	enabled bool
	log     *slog.Logger
}

var _ Announcer = (*PromotedAnnouncer)(nil)

// NewPromotedAnnouncer returns an announcer writing to topic on brokers. An
// empty broker list yields a log-only announcer.
func NewPromotedAnnouncer(brokers []string, topic string, log *slog.Logger) *PromotedAnnouncer {
	if log == nil {
		log = slog.Default()
	}
	if topic == "" {
		topic = DefaultPromotedTopic
	}
	if len(brokers) == 0 {
		log.Info("global: kafka disabled, promotion announcements log-only")
		return &PromotedAnnouncer{log: log}
	}

	return &PromotedAnnouncer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
		},
		enabled: true,
		log:     log,
	}
}

// AnnouncePromoted implements [Announcer].
func (p *PromotedAnnouncer) AnnouncePromoted(ctx context.Context, stats PairStats) error {
	payload, err := json.Marshal(struct {
		Original              string    `json:"original"`
		Replacement           string    `json:"replacement"`
		DistinctVerifiedUsers int       `json:"distinct_verified_users"`
		PromotedAt            time.Time `json:"promoted_at"`
	}{stats.Original, stats.Replacement, stats.DistinctVerifiedUsers, stats.PromotedAt})
	if err != nil {
		return fmt.Errorf("global: encode promotion: %w", err)
	}

	p.log.Debug("global: promotion announcement",
		"original", stats.Original,
		"replacement", stats.Replacement)
	if !p.enabled {
		return nil
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(stats.Original),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("global: publish promotion: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *PromotedAnnouncer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// AcceptConsumer feeds accept events from the topic into an [Aggregator].
// It is the service-side counterpart of [KafkaReporter].
type AcceptConsumer struct {
	reader *kafka.Reader
	agg    *Aggregator
	log    *slog.Logger
}

// NewAcceptConsumer returns a consumer in the given consumer group.
func NewAcceptConsumer(brokers []string, topic, group string, agg *Aggregator, log *slog.Logger) *AcceptConsumer {
	if log == nil {
		log = slog.Default()
	}
	if topic == "" {
		topic = DefaultAcceptTopic
	}
	return &AcceptConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  group,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
		agg: agg,
		log: log,
	}
}

// Run consumes until ctx is done. Malformed events are logged and skipped;
// aggregation errors are logged and the event is retried by not committing.
func (c *AcceptConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("global: fetch accept event: %w", err)
		}

		var a Accept
		if err := json.Unmarshal(msg.Value, &a); err != nil {
			c.log.Warn("global: malformed accept event", "error", err, "offset", msg.Offset)
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return fmt.Errorf("global: commit offset: %w", err)
			}
			continue
		}
		if err := c.agg.RecordAccept(ctx, a); err != nil {
			c.log.Error("global: record accept failed", "error", err, "original", a.Original)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("global: commit offset: %w", err)
		}
	}
}

// Close closes the underlying reader.
func (c *AcceptConsumer) Close() error {
	return c.reader.Close()
}
