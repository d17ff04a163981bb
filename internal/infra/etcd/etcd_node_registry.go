// internal/infra/etcd/etcd_node_registry.go
package etcd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"taskchain-dispatcher/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// etcdNodeRegistry keeps one leased key per replica under {root}/dispatcher/nodes/.
type etcdNodeRegistry struct {
	client  *clientv3.Client
	prefix  string
	logger  *slog.Logger
	mu      sync.Mutex
	leaseID clientv3.LeaseID
	key     string
}

// NewEtcdNodeRegistry creates a registry of dispatcher replicas.
func NewEtcdNodeRegistry(client *clientv3.Client, keys Keyspace, logger *slog.Logger) domain.NodeRegistry {
	return &etcdNodeRegistry{
		client: client,
		prefix: keys.NodesPrefix(),
		logger: logger.With("component", "node-registry"),
	}
}

// Register puts the node key with a lease and keeps the lease alive in the background.
func (r *etcdNodeRegistry) Register(ctx context.Context, nodeID, addr string, ttl time.Duration) error {
	leaseResp, err := r.client.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}

	key := r.prefix + nodeID
	if _, err := r.client.Put(ctx, key, addr, clientv3.WithLease(leaseResp.ID)); err != nil {
		return fmt.Errorf("failed to put node registration key: %w", err)
	}

	// The keep-alive outlives ctx; Deregister revokes the lease.
	keepAliveCh, err := r.client.KeepAlive(context.Background(), leaseResp.ID)
	if err != nil {
		return fmt.Errorf("failed to start keep-alive: %w", err)
	}

	r.mu.Lock()
	r.leaseID = leaseResp.ID
	r.key = key
	r.mu.Unlock()

	go func() {
		for ka := range keepAliveCh {
			r.logger.Debug("lease keep-alive refreshed", "lease_id", ka.ID, "ttl", ka.TTL)
		}
		r.logger.Warn("keep-alive channel closed, node registration may have expired", "key", key)
	}()

	r.logger.Info("node registered successfully", "key", key, "addr", addr)
	return nil
}

// Deregister revokes the lease, which deletes the node key.
func (r *etcdNodeRegistry) Deregister(ctx context.Context) error {
	r.mu.Lock()
	leaseID, key := r.leaseID, r.key
	r.mu.Unlock()

	if leaseID == clientv3.NoLease {
		return nil
	}
	r.logger.Info("deregistering node", "key", key)
	if _, err := r.client.Revoke(ctx, leaseID); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}
	return nil
}

func (r *etcdNodeRegistry) Nodes(ctx context.Context) (map[string]string, error) {
	resp, err := r.client.Get(ctx, r.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	nodes := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		nodes[strings.TrimPrefix(string(kv.Key), r.prefix)] = string(kv.Value)
	}
	return nodes, nil
}
