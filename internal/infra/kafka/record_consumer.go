// Package kafka consumes created-record events published by the document store's change feed.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"taskchain-dispatcher/internal/domain"

	"github.com/segmentio/kafka-go"
)

// RecordConsumer is a domain.RecordSource reading JSON record events from a topic.
// Offsets are committed after the handler returns, so a crash re-delivers the record;
// the dispatch guard absorbs the replay.
// Each Run opens its own reader, so the consumer survives successive leadership terms.
type RecordConsumer struct {
	config kafka.ReaderConfig
	logger *slog.Logger
}

var _ domain.RecordSource = (*RecordConsumer)(nil)

// NewRecordConsumer creates a consumer in groupID reading topic from brokers.
func NewRecordConsumer(brokers []string, groupID, topic string, logger *slog.Logger) *RecordConsumer {
	return &RecordConsumer{
		config: kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       10e3,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
		},
		logger: logger.With("component", "kafka-record-consumer"),
	}
}

func (c *RecordConsumer) open() *kafka.Reader {
	return kafka.NewReader(c.config)
}

// Run fetches messages with a fresh reader until ctx is canceled, then closes it.
func (c *RecordConsumer) Run(ctx context.Context, handle domain.RecordHandler) error {
	reader := c.open()
	defer func() {
		_ = reader.Close()
	}()

	c.logger.Info("consumer started", "group", c.config.GroupID, "topic", c.config.Topic, "brokers", c.config.Brokers)

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer shutting down")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("kafka reader closed: %w", err)
			}
			c.logger.Error("fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		event, err := DecodeRecordEvent(m.Value)
		if err != nil {
			// A poison message is committed so it cannot block the partition.
			c.logger.Error("dropping undecodable record event",
				"partition", m.Partition, "offset", m.Offset, "error", err)
		} else {
			if event.Revision == 0 {
				event.Revision = m.Offset
			}
			handle(ctx, event)
		}

		if err := reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("commit failed", "partition", m.Partition, "offset", m.Offset, "error", err)
		}
	}
}

// DecodeRecordEvent parses a message value into a record event.
func DecodeRecordEvent(value []byte) (*domain.RecordEvent, error) {
	var event domain.RecordEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, fmt.Errorf("failed to decode record event: %w", err)
	}
	if event.Collection == "" {
		return nil, fmt.Errorf("record event has no collection")
	}
	if len(event.Data) == 0 {
		return nil, fmt.Errorf("record event %s has no data", event.PathParams.RecordID)
	}
	return &event, nil
}
