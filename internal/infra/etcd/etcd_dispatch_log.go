// internal/infra/etcd/etcd_dispatch_log.go
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

type etcdDispatchLog struct {
	client *clientv3.Client
	keys   Keyspace
	ttl    time.Duration
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEtcdDispatchLog creates a dispatch log backed by etcd. Each entry is attached to a
// lease of ttl so the log trims itself.
func NewEtcdDispatchLog(client *clientv3.Client, keys Keyspace, ttl time.Duration, logger *slog.Logger) domain.DispatchLog {
	return &etcdDispatchLog{
		client: client,
		keys:   keys,
		ttl:    ttl,
		logger: logger.With("component", "dispatch-log"),
		tracer: otel.Tracer("taskchain-etcd-dispatch-log"),
	}
}

// Append persists a single entry under {root}/dispatch-log/{groupId}/{entryId}.
func (l *etcdDispatchLog) Append(ctx context.Context, entry *domain.DispatchLogEntry) error {
	ctx, span := l.tracer.Start(ctx, "repo.etcd.AppendDispatchLog")
	defer span.End()

	if err := entry.Validate(); err != nil {
		return err
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal dispatch log entry")
		return fmt.Errorf("failed to marshal dispatch log entry %s to JSON: %w", entry.ID, err)
	}

	key := l.keys.DispatchLogPrefix(entry.GroupID) + entry.ID
	span.SetAttributes(
		attribute.String("record.id", entry.RecordID),
		attribute.String("etcd.key", key),
	)

	lease, err := l.client.Grant(ctx, int64(l.ttl.Seconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to grant lease")
		return fmt.Errorf("failed to grant lease for dispatch log entry %s: %w", entry.ID, err)
	}

	if _, err := l.client.Put(ctx, key, string(entryJSON), clientv3.WithLease(lease.ID)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put dispatch log entry to etcd")
		return fmt.Errorf("failed to save dispatch log entry %s to etcd: %w", entry.ID, err)
	}
	return nil
}

// ListByGroup retrieves entries for a group, newest first.
func (l *etcdDispatchLog) ListByGroup(ctx context.Context, groupID string, page, pageSize int) ([]*domain.DispatchLogEntry, error) {
	ctx, span := l.tracer.Start(ctx, "repo.etcd.ListDispatchLog")
	defer span.End()
	span.SetAttributes(
		attribute.String("group.id", groupID),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	resp, err := l.client.Get(ctx, l.keys.DispatchLogPrefix(groupID),
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortDescend),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list dispatch log from etcd")
		return nil, fmt.Errorf("failed to list dispatch log for group %s from etcd: %w", groupID, err)
	}

	start, end := pageBounds(page, pageSize, len(resp.Kvs))
	entries := make([]*domain.DispatchLogEntry, 0, end-start)
	for _, kv := range resp.Kvs[start:end] {
		var entry domain.DispatchLogEntry
		if err := json.Unmarshal(kv.Value, &entry); err != nil {
			l.logger.Warn("failed to unmarshal dispatch log entry from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		entries = append(entries, &entry)
	}
	span.SetAttributes(attribute.Int("entries_returned", len(entries)))
	return entries, nil
}

// pageBounds returns the slice bounds of a 1-based page over total items.
func pageBounds(page, pageSize, total int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	pages := total / pageSize
	if total%pageSize != 0 {
		pages++
	}
	if page-1 >= pages {
		return total, total
	}
	start := (page - 1) * pageSize
	end := total
	if pageSize < total-start {
		end = start + pageSize
	}
	return start, end
}
