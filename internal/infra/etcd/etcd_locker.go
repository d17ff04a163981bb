// internal/infra/etcd/etcd_locker.go
package etcd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskchain-dispatcher/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const (
	// lockSessionTTL bounds how long a crashed handler can hold a record lock.
	lockSessionTTL = 10 // seconds
	// lockAttemptTimeout bounds a single TryLock round trip.
	lockAttemptTimeout = 2 * time.Second
)

type etcdLock struct {
	mutex   *concurrency.Mutex
	session *concurrency.Session
	name    string
}

// Unlock releases the lock and closes its session, revoking the lease.
func (l *etcdLock) Unlock(ctx context.Context) error {
	defer func() {
		_ = l.session.Close()
	}()

	if err := l.mutex.Unlock(ctx); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.name, err)
	}
	return nil
}

type etcdLocker struct {
	client *clientv3.Client
	prefix string
}

// NewEtcdLocker creates a locker keeping its mutexes under the keyspace lock prefix.
func NewEtcdLocker(client *clientv3.Client, keys Keyspace) domain.Locker {
	return &etcdLocker{client: client, prefix: keys.LockPrefix()}
}

// Lock tries to acquire name once. A lock held elsewhere yields domain.ErrLockNotAcquired.
func (l *etcdLocker) Lock(ctx context.Context, name string) (domain.Lock, error) {
	// One session per lock: when the session closes or its lease expires the lock is released.
	session, err := concurrency.NewSession(l.client, concurrency.WithTTL(lockSessionTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd session for lock %s: %w", name, err)
	}

	mutex := concurrency.NewMutex(session, l.prefix+name)

	tryCtx, cancel := context.WithTimeout(ctx, lockAttemptTimeout)
	defer cancel()

	if err := mutex.TryLock(tryCtx); err != nil {
		_ = session.Close()
		if errors.Is(err, concurrency.ErrLocked) {
			return nil, domain.ErrLockNotAcquired
		}
		return nil, fmt.Errorf("failed to try acquiring etcd lock %s: %w", name, err)
	}

	return &etcdLock{
		mutex:   mutex,
		session: session,
		name:    name,
	}, nil
}
