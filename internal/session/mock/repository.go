package sessionmock

import (
	"context"
	"sync"

	"github.com/lexislearn/admin-gateway/internal/serviceerr"
	"github.com/lexislearn/admin-gateway/internal/session"
)

type RepositoryOption func(*Repository)

type Repository struct {
	mu       sync.Mutex
	profiles map[string]session.Profile
	loads    int

	loadErr, storeErr, deleteErr, listErr error
}

func WithProfile(p session.Profile) RepositoryOption {
	return func(r *Repository) { r.profiles[p.ID] = p }
}
func WithLoadError(err error) RepositoryOption {
	return func(r *Repository) { r.loadErr = err }
}
func WithStoreError(err error) RepositoryOption {
	return func(r *Repository) { r.storeErr = err }
}
func WithDeleteError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteErr = err }
}
func WithListError(err error) RepositoryOption {
	return func(r *Repository) { r.listErr = err }
}

var _ = session.Repository(&Repository{})

func NewInMemRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		profiles: make(map[string]session.Profile),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Repository) LoadProfile(_ context.Context, id string) (session.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loads++
	if r.loadErr != nil {
		return session.Profile{}, r.loadErr
	}
	if p, ok := r.profiles[id]; ok {
		return p, nil
	}
	return session.Profile{}, serviceerr.ErrNotFound
}

func (r *Repository) StoreProfile(_ context.Context, p session.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storeErr != nil {
		return r.storeErr
	}
	r.profiles[p.ID] = p
	return nil
}

func (r *Repository) DeleteProfile(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.profiles[id]; !ok {
		return serviceerr.ErrNotFound
	}
	delete(r.profiles, id)
	return nil
}

func (r *Repository) ListProfiles(_ context.Context) ([]session.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listErr != nil {
		return nil, r.listErr
	}
	profiles := make([]session.Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Loads reports how many times LoadProfile has been called.
func (r *Repository) Loads() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loads
}

// Has reports whether a profile with the given id is stored.
func (r *Repository) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.profiles[id]
	return ok
}

// Get returns the stored profile with the given id.
func (r *Repository) Get(id string) (session.Profile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	return p, ok
}
