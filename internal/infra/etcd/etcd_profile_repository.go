package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"taskchain-dispatcher/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type etcdProfileRepository struct {
	client *clientv3.Client
	keys   Keyspace
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEtcdProfileRepository creates a profile repository backed by etcd. It is also the
// recipient lookup used to resolve reminder device tokens.
func NewEtcdProfileRepository(client *clientv3.Client, keys Keyspace, logger *slog.Logger) domain.ProfileRepository {
	return &etcdProfileRepository{
		client: client,
		keys:   keys,
		logger: logger.With("component", "profile-repo"),
		tracer: otel.Tracer("taskchain-etcd-profile-repo"),
	}
}

func (r *etcdProfileRepository) Lookup(ctx context.Context, userID string) (*domain.UserProfile, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.LookupProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	resp, err := r.client.Get(ctx, r.keys.Profile(userID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get profile from etcd")
		return nil, fmt.Errorf("failed to get profile %s from etcd: %w", userID, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, domain.ErrProfileNotFound
	}

	var profile domain.UserProfile
	if err := json.Unmarshal(resp.Kvs[0].Value, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile %s from JSON: %w", userID, err)
	}
	span.SetAttributes(attribute.Bool("profile.has_token", profile.FCMToken != ""))
	return &profile, nil
}

func (r *etcdProfileRepository) SaveProfile(ctx context.Context, userID string, profile *domain.UserProfile) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.SaveProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile to JSON: %w", err)
	}
	if _, err := r.client.Put(ctx, r.keys.Profile(userID), string(profileJSON)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put profile to etcd")
		return fmt.Errorf("failed to save profile %s to etcd: %w", userID, err)
	}
	return nil
}
