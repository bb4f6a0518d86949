// Package presence keeps online/offline status in Redis so dashboards (and,
// later, other instances) can see who is connected. The hub remains the
// authority for routing; this store only records status.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Status struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) connKey(userID string) string {
	return fmt.Sprintf("%s:conn:%s", s.prefix, userID)
}

func (s *Store) presenceKey(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

// AddConnection records one live socket for the user and marks them online.
func (s *Store) AddConnection(ctx context.Context, userID, socketID string) error {
	if err := s.client.SAdd(ctx, s.connKey(userID), socketID).Err(); err != nil {
		return err
	}
	_ = s.client.Expire(ctx, s.connKey(userID), s.ttl).Err()
	return s.client.Set(ctx, s.presenceKey(userID),
		fmt.Sprintf(`{"status":"online","last_seen":%d}`, time.Now().Unix()), s.ttl).Err()
}

// RemoveConnection drops one socket; the user goes offline when none remain.
// Returns true when this removal took the user offline.
func (s *Store) RemoveConnection(ctx context.Context, userID, socketID string) (bool, error) {
	key := s.connKey(userID)
	if err := s.client.SRem(ctx, key, socketID).Err(); err != nil {
		return false, err
	}
	cnt, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt > 0 {
		return false, nil
	}
	err = s.client.Set(ctx, s.presenceKey(userID),
		fmt.Sprintf(`{"status":"offline","last_seen":%d}`, time.Now().Unix()), 0).Err()
	return true, err
}

// IsOnline reports whether the user has at least one recorded socket.
func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	cnt, err := s.client.SCard(ctx, s.connKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}
