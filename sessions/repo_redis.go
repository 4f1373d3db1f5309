package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefixes. The sub/sid keys are secondary indexes that let
	// back-channel logout locate sessions without a browser-held cookie.
	sessionKeyPrefix = "session:id:"
	subIndexPrefix   = "session:sub:"
	sidIndexPrefix   = "session:sid:"
)

// RedisDataStore is a Redis-backed implementation of DataStore. This is the
// production-recommended implementation when multiple instances need to share
// session state.
type RedisDataStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ DataStore = (*RedisDataStore)(nil)

// NewRedisDataStore constructs a Redis-backed session data store. ttl bounds
// how long a record survives without a write; it should be at least the
// session's absolute duration.
func NewRedisDataStore(client *redis.Client, ttl time.Duration) *RedisDataStore {
	return &RedisDataStore{client: client, ttl: ttl}
}

// Get retrieves a session by id. An absent or expired key returns nil.
func (r *RedisDataStore) Get(ctx context.Context, id string) (*SessionData, error) {
	raw, err := r.client.Get(ctx, sessionKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var session SessionData
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session %q: %w", id, err)
	}
	return &session, nil
}

// Set stores the session as JSON and maintains the sub/sid index keys, all
// with the configured TTL. Uses a pipeline for the batch write.
func (r *RedisDataStore) Set(ctx context.Context, id string, session *SessionData) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %q: %w", id, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+id, raw, r.ttl)
	if sub, ok := session.User["sub"].(string); ok && sub != "" {
		pipe.SAdd(ctx, subIndexPrefix+sub, id)
		pipe.Expire(ctx, subIndexPrefix+sub, r.ttl)
	}
	if sid := session.Internal.SID; sid != "" {
		pipe.Set(ctx, sidIndexPrefix+sid, id, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Delete removes the session record. Index keys are left to expire on their
// own; stale index entries resolve to missing records and are harmless.
func (r *RedisDataStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// DeleteByLogoutToken removes the sessions matched by the logout token's sid
// or sub claims via the index keys.
func (r *RedisDataStore) DeleteByLogoutToken(ctx context.Context, claims LogoutClaims) error {
	var ids []string

	if claims.SID != "" {
		id, err := r.client.Get(ctx, sidIndexPrefix+claims.SID).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis resolve sid index: %w", err)
		}
		if id != "" {
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 && claims.Sub != "" {
		members, err := r.client.SMembers(ctx, subIndexPrefix+claims.Sub).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis resolve sub index: %w", err)
		}
		ids = append(ids, members...)
	}

	if len(ids) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, sessionKeyPrefix+id)
	}
	if claims.SID != "" {
		pipe.Del(ctx, sidIndexPrefix+claims.SID)
	}
	if claims.Sub != "" {
		pipe.Del(ctx, subIndexPrefix+claims.Sub)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete by logout token: %w", err)
	}
	return nil
}
