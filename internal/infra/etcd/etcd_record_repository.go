// internal/infra/etcd/etcd_record_repository.go
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"taskchain-dispatcher/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxWriteBackAttempts bounds compare-and-swap retries when a record changes under a write-back.
const maxWriteBackAttempts = 5

// Document fields touched by a write-back.
const (
	fieldSent   = "sent"
	fieldSentAt = "sentAt"
	fieldError  = "error"
)

// EtcdRecordRepository stores reminders and messages and applies outcome write-backs.
type EtcdRecordRepository struct {
	client *clientv3.Client
	keys   Keyspace
	logger *slog.Logger
	tracer trace.Tracer
}

var (
	_ domain.RecordRepository = (*EtcdRecordRepository)(nil)
	_ domain.OutcomeRecorder  = (*EtcdRecordRepository)(nil)
)

// NewEtcdRecordRepository creates a new record repository backed by etcd.
func NewEtcdRecordRepository(client *clientv3.Client, keys Keyspace, logger *slog.Logger) *EtcdRecordRepository {
	return &EtcdRecordRepository{
		client: client,
		keys:   keys,
		logger: logger.With("component", "record-repo"),
		tracer: otel.Tracer("taskchain-etcd-record-repo"),
	}
}

// SaveReminder creates or replaces a reminder document.
func (r *EtcdRecordRepository) SaveReminder(ctx context.Context, userID, reminderID string, doc *domain.ReminderDocument) error {
	return r.put(ctx, "repo.etcd.SaveReminder", r.keys.Reminder(userID, reminderID), doc)
}

// SaveMessage creates or replaces a message document.
func (r *EtcdRecordRepository) SaveMessage(ctx context.Context, groupID, messageID string, doc *domain.MessageDocument) error {
	return r.put(ctx, "repo.etcd.SaveMessage", r.keys.Message(groupID, messageID), doc)
}

func (r *EtcdRecordRepository) put(ctx context.Context, spanName, key string, doc any) error {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("etcd.key", key))

	docJSON, err := json.Marshal(doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal document")
		return fmt.Errorf("failed to marshal document %s: %w", key, err)
	}

	if _, err := r.client.Put(ctx, key, string(docJSON)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put document to etcd")
		return fmt.Errorf("failed to save document %s to etcd: %w", key, err)
	}
	return nil
}

// GetReminder retrieves a reminder document.
func (r *EtcdRecordRepository) GetReminder(ctx context.Context, userID, reminderID string) (*domain.ReminderDocument, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.GetReminder")
	defer span.End()

	key := r.keys.Reminder(userID, reminderID)
	span.SetAttributes(attribute.String("etcd.key", key))

	resp, err := r.client.Get(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get reminder from etcd")
		return nil, fmt.Errorf("failed to get reminder %s from etcd: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, domain.ErrRecordNotFound
	}

	var doc domain.ReminderDocument
	if err := json.Unmarshal(resp.Kvs[0].Value, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reminder %s from JSON: %w", key, err)
	}
	return &doc, nil
}

// ListReminders retrieves every reminder under the users prefix.
func (r *EtcdRecordRepository) ListReminders(ctx context.Context) ([]*domain.ReminderDocument, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.ListReminders")
	defer span.End()

	resp, err := r.client.Get(ctx, r.keys.UsersPrefix(), clientv3.WithPrefix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list reminders from etcd")
		return nil, fmt.Errorf("failed to list reminders from etcd: %w", err)
	}

	docs := make([]*domain.ReminderDocument, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if !r.keys.isReminderKey(string(kv.Key)) {
			continue
		}
		var doc domain.ReminderDocument
		if err := json.Unmarshal(kv.Value, &doc); err != nil {
			r.logger.Warn("failed to unmarshal reminder from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		docs = append(docs, &doc)
	}
	span.SetAttributes(attribute.Int("reminders_returned", len(docs)))
	return docs, nil
}

// RecordOutcome merges wb into the stored document. The update is a transaction guarded
// on the document's ModRevision so concurrent edits are neither lost nor overwritten.
func (r *EtcdRecordRepository) RecordOutcome(ctx context.Context, ref domain.RecordRef, wb domain.WriteBack) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.RecordOutcome")
	defer span.End()

	key := r.keys.Record(ref)
	span.SetAttributes(
		attribute.String("etcd.key", key),
		attribute.Bool("dispatch.sent", wb.Sent),
	)

	for attempt := 1; attempt <= maxWriteBackAttempts; attempt++ {
		resp, err := r.client.Get(ctx, key)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read record for write-back")
			return fmt.Errorf("failed to read record %s for write-back: %w", key, err)
		}
		if len(resp.Kvs) == 0 {
			return fmt.Errorf("write-back to %s: %w", key, domain.ErrRecordNotFound)
		}
		kv := resp.Kvs[0]

		updated, err := applyWriteBack(kv.Value, wb)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to merge write-back")
			return fmt.Errorf("failed to merge write-back into %s: %w", key, err)
		}

		txn, err := r.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", kv.ModRevision)).
			Then(clientv3.OpPut(key, string(updated))).
			Commit()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write-back transaction failed")
			return fmt.Errorf("write-back transaction on %s failed: %w", key, err)
		}
		if txn.Succeeded {
			span.SetAttributes(attribute.Int("write_back.attempts", attempt))
			return nil
		}
		r.logger.Debug("record changed during write-back, retrying", "key", key, "attempt", attempt)
	}

	err := fmt.Errorf("write-back to %s gave up after %d conflicting attempts", key, maxWriteBackAttempts)
	span.RecordError(err)
	span.SetStatus(codes.Error, "write-back conflicts")
	return err
}

// applyWriteBack merges wb into a JSON document, keeping every field it does not own.
func applyWriteBack(raw []byte, wb domain.WriteBack) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	put := func(name string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fields[name] = b
		return nil
	}

	if err := put(fieldSent, wb.Sent); err != nil {
		return nil, err
	}
	if wb.Sent {
		if err := put(fieldSentAt, wb.SentAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return nil, err
		}
		delete(fields, fieldError)
	} else {
		if err := put(fieldError, wb.Error); err != nil {
			return nil, err
		}
	}
	return json.Marshal(fields)
}
