package domain

import "context"

// LeaderElectionManager elects the single node that observes records and runs periodic jobs.
type LeaderElectionManager interface {
	// Campaign blocks until this node is leader; the returned channel closes when leadership is lost.
	Campaign(ctx context.Context) (<-chan struct{}, error)
	Resign(ctx context.Context) error
	IsLeader() bool
}
