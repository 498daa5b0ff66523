package unlimited

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for draft documents
	DraftKeyPrefix = "unlimited:draft:"
)

// RedisDraftStore keeps drafts as JSON documents with a sliding TTL. Updates use
// WATCH/MULTI so two writers on the same draft never lose each other's change.
type RedisDraftStore struct {
	client     *redis.Client
	ttl        time.Duration
	maxRetries int
	now        func() time.Time
}

// NewRedisDraftStore creates a draft store on top of client.
func NewRedisDraftStore(client *redis.Client, ttl time.Duration, maxRetries int) *RedisDraftStore {
	if maxRetries <= 0 {
		maxRetries = DefaultConfig().DraftCASRetries
	}
	if ttl <= 0 {
		ttl = DefaultConfig().DraftTTL
	}
	return &RedisDraftStore{
		client:     client,
		ttl:        ttl,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

func draftKey(id string) string {
	return DraftKeyPrefix + id
}

func (s *RedisDraftStore) touch(d *Draft) {
	now := s.now().UTC()
	d.UpdatedAt = now
	d.ExpiresAt = now.Add(s.ttl)
}

func (s *RedisDraftStore) Create(ctx context.Context, d *Draft) error {
	s.touch(d)
	if d.CreatedAt.IsZero() {
		d.CreatedAt = d.UpdatedAt
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	ok, err := s.client.SetNX(ctx, draftKey(d.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store draft: %w", err)
	}
	if !ok {
		return fmt.Errorf("draft %s already exists", d.ID)
	}
	return nil
}

func (s *RedisDraftStore) Get(ctx context.Context, id string) (*Draft, error) {
	data, err := s.client.Get(ctx, draftKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	return decodeDraft(data)
}

func (s *RedisDraftStore) Update(ctx context.Context, id string, fn func(d *Draft) error) (*Draft, error) {
	key := draftKey(id)
	var result *Draft

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrDraftNotFound
			}
			return err
		}
		current, err := decodeDraft(data)
		if err != nil {
			return err
		}

		next := current.clone()
		if err := fn(next); err != nil {
			if errors.Is(err, errNoChange) {
				result = current
				return nil
			}
			return err
		}
		s.touch(next)

		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal draft: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrConcurrentModification
}

func (s *RedisDraftStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, draftKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

func decodeDraft(data []byte) (*Draft, error) {
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &d, nil
}
