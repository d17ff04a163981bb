package domain

import (
	"context"
	"time"
)

// NodeRegistry advertises running dispatcher replicas.
type NodeRegistry interface {
	// Register advertises nodeID at addr for as long as the process keeps its lease alive.
	Register(ctx context.Context, nodeID, addr string, ttl time.Duration) error
	Deregister(ctx context.Context) error
	// Nodes returns the registered replicas keyed by node id.
	Nodes(ctx context.Context) (map[string]string, error)
}
