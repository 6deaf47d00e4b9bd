package activitymock

import (
	"context"
	"sync"
	"time"

	"github.com/lexislearn/admin-gateway/internal/activity"
)

type RepositoryOption func(*Repository)

type Repository struct {
	mu     sync.Mutex
	events []activity.Event

	insertErr, countErr, deleteErr error
}

func WithEvent(e activity.Event) RepositoryOption {
	return func(r *Repository) { r.events = append(r.events, e) }
}
func WithInsertError(err error) RepositoryOption {
	return func(r *Repository) { r.insertErr = err }
}
func WithCountError(err error) RepositoryOption {
	return func(r *Repository) { r.countErr = err }
}
func WithDeleteError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteErr = err }
}

var _ = activity.Repository(&Repository{})

func NewInMemRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Repository) Insert(_ context.Context, e activity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.insertErr != nil {
		return r.insertErr
	}
	r.events = append(r.events, e)
	return nil
}

func (r *Repository) CountByKind(_ context.Context, since time.Time) (map[activity.Kind]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.countErr != nil {
		return nil, r.countErr
	}
	counts := make(map[activity.Kind]int64)
	for _, e := range r.events {
		if e.OccurredAt.Before(since) {
			continue
		}
		counts[e.Kind]++
	}
	return counts, nil
}

func (r *Repository) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	kept := r.events[:0]
	var deleted int64
	for _, e := range r.events {
		if e.OccurredAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return deleted, nil
}

// Events returns a copy of the recorded events.
func (r *Repository) Events() []activity.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]activity.Event(nil), r.events...)
}
