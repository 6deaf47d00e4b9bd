package session

import "context"

type Repository interface {
	// LoadProfile returns serviceerr.ErrNotFound for unknown or expired ids.
	LoadProfile(ctx context.Context, id string) (Profile, error)
	StoreProfile(ctx context.Context, profile Profile) error
	DeleteProfile(ctx context.Context, id string) error
	ListProfiles(ctx context.Context) ([]Profile, error)
}
