package domain

import "context"

// PeriodicJob is a named function run on a cron schedule.
type PeriodicJob struct {
	Name     string
	Schedule string // Six-field cron expression (with seconds)
	Run      func(ctx context.Context)
}

// Scheduler runs periodic jobs until its context is canceled.
type Scheduler interface {
	Start(ctx context.Context) error
	AddJob(job PeriodicJob) error
	RemoveJob(name string) error
}
