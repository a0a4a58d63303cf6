package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
)

// Store keeps the durable identity record in Redis: one JSON value per
// relay plus a list holding the ids in order.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis identity store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

func (s *Store) Backend() string { return "redis" }

// Load retrieves the record in stored order. Entries whose value is
// missing or unreadable are skipped.
func (s *Store) Load(ctx context.Context) ([]domain.Identity, error) {
	ids, err := s.client.LRange(ctx, OrderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get identity order: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = IdentityKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get identities: %w", err)
	}

	out := make([]domain.Identity, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var ident domain.Identity
		if err := json.Unmarshal([]byte(raw), &ident); err != nil {
			continue
		}
		out = append(out, ident)
	}
	return out, nil
}

// Save replaces the record in a single MULTI/EXEC transaction. Identity
// keys left behind by earlier records, listed or not, are removed.
func (s *Store) Save(ctx context.Context, identities []domain.Identity) error {
	stale, err := s.storedKeys(ctx)
	if err != nil {
		return err
	}

	payloads := make([][]byte, len(identities))
	for i, ident := range identities {
		data, err := json.Marshal(ident)
		if err != nil {
			return fmt.Errorf("failed to marshal identity %s: %w", ident.ID, err)
		}
		payloads[i] = data
		delete(stale, IdentityKey(ident.ID))
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key := range stale {
			pipe.Del(ctx, key)
		}
		pipe.Del(ctx, OrderKey())
		for i, ident := range identities {
			pipe.Set(ctx, IdentityKey(ident.ID), payloads[i], 0)
			pipe.RPush(ctx, OrderKey(), ident.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save identities: %w", err)
	}
	return nil
}

// storedKeys returns every identity key currently in Redis: those named by
// the order list and any orphan found by scanning the key prefix.
func (s *Store) storedKeys(ctx context.Context) (map[string]struct{}, error) {
	listed, err := s.client.LRange(ctx, OrderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get identity order: %w", err)
	}

	keys := make(map[string]struct{}, len(listed))
	for _, id := range listed {
		keys[IdentityKey(id)] = struct{}{}
	}

	iter := s.client.Scan(ctx, 0, KeyPrefixIdentity+"*", 100).Iterator()
	for iter.Next(ctx) {
		if _, err := ExtractIdentityID(iter.Val()); err != nil {
			continue
		}
		keys[iter.Val()] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan identity keys: %w", err)
	}
	return keys, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
