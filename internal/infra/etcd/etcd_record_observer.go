// internal/infra/etcd/etcd_record_observer.go
package etcd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"taskchain-dispatcher/internal/domain"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const rewatchDelay = time.Second

// RecordObserver turns reminder and message creations in etcd into record events.
// Progress is persisted as a revision cursor so a restarted leader resumes where the
// previous one stopped.
type RecordObserver struct {
	client *clientv3.Client
	keys   Keyspace
	logger *slog.Logger
}

var _ domain.RecordSource = (*RecordObserver)(nil)

// NewRecordObserver creates an observer over the users and groups collections.
func NewRecordObserver(client *clientv3.Client, keys Keyspace, logger *slog.Logger) *RecordObserver {
	return &RecordObserver{
		client: client,
		keys:   keys,
		logger: logger.With("component", "record-observer"),
	}
}

// Run watches for created records and calls handle for each, in revision order.
// It blocks until ctx is canceled.
func (o *RecordObserver) Run(ctx context.Context, handle domain.RecordHandler) error {
	rev, err := o.startRevision(ctx)
	if err != nil {
		return err
	}
	o.logger.Info("starting to watch for created records", "from_revision", rev)

	for {
		next, err := o.watch(ctx, rev, handle)
		if ctx.Err() != nil {
			o.logger.Info("stopped watching for records")
			return ctx.Err()
		}
		if err != nil {
			o.logger.Warn("record watch interrupted, re-watching", "revision", next, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(rewatchDelay):
			}
		}
		rev = next
	}
}

// watch consumes one watch stream starting at rev and returns the revision to resume from.
func (o *RecordObserver) watch(ctx context.Context, rev int64, handle domain.RecordHandler) (int64, error) {
	watchCtx, cancel := context.WithCancel(clientv3.WithRequireLeader(ctx))
	defer cancel()

	// groups/ sorts before users/, so one range covers both collections and nothing else
	// the dispatcher writes.
	watchChan := o.client.Watch(watchCtx, o.keys.GroupsPrefix(),
		clientv3.WithRange(clientv3.GetPrefixRangeEnd(o.keys.UsersPrefix())),
		clientv3.WithRev(rev),
	)

	for watchResp := range watchChan {
		if err := watchResp.Err(); err != nil {
			if errors.Is(err, rpctypes.ErrCompacted) {
				o.logger.Warn("watch revision compacted, records created in between are lost",
					"requested", rev, "compact_revision", watchResp.CompactRevision)
				return watchResp.CompactRevision, nil
			}
			return rev, err
		}

		for _, ev := range watchResp.Events {
			// Updates, including outcome write-backs, never trigger a dispatch.
			if !ev.IsCreate() {
				continue
			}
			collection, params, ok := o.keys.ParseRecordKey(string(ev.Kv.Key))
			if !ok {
				continue
			}
			handle(ctx, &domain.RecordEvent{
				Collection: collection,
				PathParams: params,
				Data:       ev.Kv.Value,
				Revision:   ev.Kv.ModRevision,
			})
		}

		if n := len(watchResp.Events); n > 0 {
			rev = watchResp.Events[n-1].Kv.ModRevision + 1
			o.saveCursor(ctx, rev-1)
		}
	}
	if ctx.Err() != nil {
		return rev, ctx.Err()
	}
	return rev, errors.New("watch channel closed")
}

// startRevision resumes after the persisted cursor, or from the next revision when the
// observer has never run.
func (o *RecordObserver) startRevision(ctx context.Context) (int64, error) {
	resp, err := o.client.Get(ctx, o.keys.Cursor())
	if err != nil {
		return 0, fmt.Errorf("failed to read watch cursor: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return resp.Header.Revision + 1, nil
	}
	cursor, err := strconv.ParseInt(string(resp.Kvs[0].Value), 10, 64)
	if err != nil {
		o.logger.Warn("ignoring malformed watch cursor", "value", string(resp.Kvs[0].Value), "error", err)
		return resp.Header.Revision + 1, nil
	}
	return cursor + 1, nil
}

func (o *RecordObserver) saveCursor(ctx context.Context, rev int64) {
	if _, err := o.client.Put(ctx, o.keys.Cursor(), strconv.FormatInt(rev, 10)); err != nil {
		o.logger.Warn("failed to persist watch cursor", "revision", rev, "error", err)
	}
}
