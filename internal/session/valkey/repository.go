package sessionvalkey

import (
	"context"
	"errors"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/lexislearn/admin-gateway/internal/session"
)

type ObjectType string

const objectTypeProfile ObjectType = "profile"

var (
	ErrGetProfile    = errors.New("getting profile from store")
	ErrStoreProfile  = errors.New("setting profile into storage")
	ErrDeleteProfile = errors.New("deleting profile from store")
	ErrListProfiles  = errors.New("getting profiles from store")
)

type Repository struct {
	store *store
}

var _ = session.Repository(&Repository{})

func NewRepository(valkeyClient valkey.Client, prefix string) *Repository {
	return &Repository{
		store: newStore(valkeyClient, prefix),
	}
}

func (r *Repository) LoadProfile(ctx context.Context, id string) (session.Profile, error) {
	var p session.Profile
	if err := r.store.Get(ctx, objectTypeProfile, id, &p); err != nil {
		return session.Profile{}, errors.Join(ErrGetProfile, err)
	}

	return p, nil
}

func (r *Repository) StoreProfile(ctx context.Context, p session.Profile) error {
	if err := r.store.Set(ctx, objectTypeProfile, p.ID, p, time.Until(p.Expiry)); err != nil {
		return errors.Join(ErrStoreProfile, err)
	}

	return nil
}

func (r *Repository) DeleteProfile(ctx context.Context, id string) error {
	if err := r.store.Destroy(ctx, objectTypeProfile, id); err != nil {
		return errors.Join(ErrDeleteProfile, err)
	}

	return nil
}

func (r *Repository) ListProfiles(ctx context.Context) ([]session.Profile, error) {
	var profiles []session.Profile
	if err := getStoreObjects(ctx, r.store, objectTypeProfile, &profiles); err != nil {
		return nil, errors.Join(ErrListProfiles, err)
	}

	return profiles, nil
}
