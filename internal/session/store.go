package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DevOwais28/Expense-Tracker/internal/models"
)

var ErrNotFound = errors.New("session not found")

const (
	keyPrefix       = "sess:"
	userIndexPrefix = "sess:user:"
)

// Record is the persisted session. Email, Name, Role and Avatar are the
// principal snapshot taken at login.
type Record struct {
	ID        string          `json:"id"`
	UserID    string          `json:"uid"`
	Channel   string          `json:"channel"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Role      models.UserRole `json:"role"`
	Avatar    string          `json:"avatar,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func (r Record) Kind() models.IdentityKind {
	switch r.Channel {
	case models.LocalSession.String():
		return models.LocalSession
	case models.FederatedSession.String():
		return models.FederatedSession
	default:
		return models.Anonymous
	}
}

// Store persists session records. Save must write rec and remove priorID as
// one atomic step.
type Store interface {
	Save(ctx context.Context, rec Record, priorID string) error
	Get(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
	// Trim drops the oldest sessions of userID beyond keep and returns their ids.
	Trim(ctx context.Context, userID string, keep int) ([]string, error)
	DeleteUser(ctx context.Context, userID string) (int, error)
	PruneIndexes(ctx context.Context, olderThan time.Time) (int64, error)
	Ping(ctx context.Context) error
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(id string) string { return keyPrefix + id }

func userIndexKey(userID string) string { return userIndexPrefix + userID }

func (s *RedisStore) Save(ctx context.Context, rec Record, priorID string) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	// The prior owner is only needed to keep its index tidy; a stale index
	// entry is harmless and gets pruned.
	var priorOwner string
	if priorID != "" {
		if prior, err := s.Get(ctx, priorID); err == nil {
			priorOwner = prior.UserID
		}
	}

	index := userIndexKey(rec.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(rec.ID), payload, ttl)
		if priorID != "" {
			pipe.Del(ctx, sessionKey(priorID))
			if priorOwner != "" {
				pipe.ZRem(ctx, userIndexKey(priorOwner), priorID)
			}
		}
		pipe.ZAdd(ctx, index, redis.Z{Score: float64(rec.CreatedAt.UnixMicro()), Member: rec.ID})
		pipe.Expire(ctx, index, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("load session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode session: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		pipe.ZRem(ctx, userIndexKey(rec.UserID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) Trim(ctx context.Context, userID string, keep int) ([]string, error) {
	if keep < 1 {
		keep = 1
	}
	index := userIndexKey(userID)
	// Oldest first by creation time, so concurrent trims agree on the victims.
	evicted, err := s.client.ZRange(ctx, index, 0, int64(-keep-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read session index: %w", err)
	}
	if len(evicted) == 0 {
		return nil, nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		keys := make([]string, 0, len(evicted))
		members := make([]interface{}, 0, len(evicted))
		for _, id := range evicted {
			keys = append(keys, sessionKey(id))
			members = append(members, id)
		}
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, index, members...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("evict sessions: %w", err)
	}
	return evicted, nil
}

func (s *RedisStore) DeleteUser(ctx context.Context, userID string) (int, error) {
	index := userIndexKey(userID)
	ids, err := s.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("read session index: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, index)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return len(ids), nil
}

// PruneIndexes removes index entries for sessions created before olderThan.
// The session keys themselves expire through their Redis TTL.
func (s *RedisStore) PruneIndexes(ctx context.Context, olderThan time.Time) (int64, error) {
	var removed int64
	cutoff := "(" + strconv.FormatInt(olderThan.UnixMicro(), 10)

	iter := s.client.Scan(ctx, 0, userIndexPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", cutoff).Result()
		if err != nil {
			return removed, fmt.Errorf("prune %s: %w", iter.Val(), err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan session indexes: %w", err)
	}
	return removed, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
