package sessionvalkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/lexislearn/admin-gateway/internal/serviceerr"
)

type store struct {
	valkey valkey.Client
	prefix string
}

func newStore(valkeyClient valkey.Client, prefix string) *store {
	prefix = strings.TrimSuffix(prefix, ":")
	return &store{
		valkey: valkeyClient,
		prefix: prefix,
	}
}

func (s *store) Get(ctx context.Context, objectType ObjectType, objectID string, decodeInto any) error {
	return s.get(ctx, s.key(objectType, objectID), decodeInto)
}

// Set stores val with the given time to live. Values whose time to live
// has already passed are not stored.
func (s *store) Set(ctx context.Context, objectType ObjectType, id string, val any, ttl time.Duration) error {
	seconds := int64(ttl / time.Second)
	if seconds <= 0 {
		return serviceerr.ErrInvalidRequest.WithDescription("object already expired")
	}

	bytes, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	cmd := s.valkey.B().Set().Key(s.key(objectType, id)).Value(valkey.BinaryString(bytes)).ExSeconds(seconds).Build()
	if err := s.valkey.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("executing set command: %w", err)
	}

	return nil
}

func (s *store) Destroy(ctx context.Context, objectType ObjectType, id string) error {
	deleted, err := s.valkey.Do(ctx, s.valkey.B().Del().Key(s.key(objectType, id)).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("executing del command: %w", err)
	}

	if deleted == 0 {
		return serviceerr.ErrNotFound
	}

	return nil
}

func (s *store) get(ctx context.Context, key string, decodeInto any) error {
	bytes, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return serviceerr.ErrNotFound
		}

		return fmt.Errorf("executing get command: %w", err)
	}

	if err := json.Unmarshal(bytes, decodeInto); err != nil {
		return fmt.Errorf("unmarshaling json: %w", err)
	}

	return nil
}

func (s *store) key(objectType ObjectType, objectID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, objectType, objectID)
}

// getStoreObjects decodes every object of the given type. Keys that expire
// between the scan and the read are skipped.
func getStoreObjects[T any](ctx context.Context, s *store, objectType ObjectType, decodeInto *[]T) error {
	match := s.key(objectType, "*")
	var cursor uint64
	for {
		scan, err := s.valkey.Do(ctx, s.valkey.B().Scan().Cursor(cursor).Match(match).Count(100).Build()).AsScanEntry()
		if err != nil {
			return fmt.Errorf("executing scan command: %w", err)
		}

		cursor = scan.Cursor
		*decodeInto = slices.Grow(*decodeInto, len(scan.Elements))
		for _, key := range scan.Elements {
			var decoded T
			err := s.get(ctx, key, &decoded)
			if errors.Is(err, serviceerr.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("getting an element: %w", err)
			}

			*decodeInto = append(*decodeInto, decoded)
		}

		if cursor == 0 {
			return nil
		}
	}
}
