package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	slogctx "github.com/veqryn/slog-context"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Record stores an event. Failures are logged, never returned.
func (s *Service) Record(ctx context.Context, kind Kind, email, subject string) {
	event := Event{
		ID:         uuid.New(),
		Kind:       kind,
		Email:      email,
		Subject:    subject,
		OccurredAt: s.now().UTC(),
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		slogctx.Error(ctx, "Failed to record activity", "kind", kind, "error", err)
	}
}

func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	now := s.now().UTC()

	totals, err := s.repo.CountByKind(ctx, time.Time{})
	if err != nil {
		return Statistics{}, fmt.Errorf("counting all events: %w", err)
	}

	recent, err := s.repo.CountByKind(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return Statistics{}, fmt.Errorf("counting recent events: %w", err)
	}

	return Statistics{
		Totals:      totals,
		Last24h:     recent,
		GeneratedAt: now,
	}, nil
}

// Prune deletes the events older than the retention period.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	before := s.now().UTC().Add(-retention)

	deleted, err := s.repo.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("deleting events before %s: %w", before.Format(time.RFC3339), err)
	}

	slogctx.Info(ctx, "Pruned activity events", "deleted", deleted, "before", before)

	return deleted, nil
}
