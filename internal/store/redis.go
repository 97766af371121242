package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/workforge/relay/internal/models"
)

const (
	transcriptTTL = 30 * 24 * time.Hour
	dmInboxTTL    = 30 * 24 * time.Hour
	dmInboxMax    = 500
)

// RedisStore handles Redis operations: call chat transcripts and the
// recent direct-message inbox.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for middleware that needs raw
// commands (rate limiting).
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// transcriptKey returns the key for a call's chat transcript sorted set.
func transcriptKey(callID string) string {
	return fmt.Sprintf("call:%s:chat", callID)
}

// dmInboxKey returns the key for a user's direct-message inbox.
func dmInboxKey(userID string) string {
	return fmt.Sprintf("dm:%s:inbox", userID)
}

// AppendChatMessage appends an entry to the call's transcript. The
// timestamp scores the sorted set so history reads come back in
// append order.
func (s *RedisStore) AppendChatMessage(ctx context.Context, entry *models.ChatEntry) error {
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := transcriptKey(entry.CallID)
	if err := s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(entry.Timestamp),
		Member: string(data),
	}).Err(); err != nil {
		return err
	}

	s.client.Expire(ctx, key, transcriptTTL)
	return nil
}

// GetChatHistory returns the full transcript of a call in append order.
func (s *RedisStore) GetChatHistory(ctx context.Context, callID string) ([]models.ChatEntry, error) {
	results, err := s.client.ZRange(ctx, transcriptKey(callID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.ChatEntry, 0, len(results))
	for _, data := range results {
		var entry models.ChatEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// StoreDM persists a direct message into the recipient's inbox.
func (s *RedisStore) StoreDM(ctx context.Context, dm *models.DirectMessage) error {
	if dm.ID == "" {
		dm.ID = ulid.Make().String()
	}
	if dm.Timestamp == 0 {
		dm.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(dm)
	if err != nil {
		return err
	}

	key := dmInboxKey(dm.ToID)
	if err := s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(dm.Timestamp),
		Member: string(data),
	}).Err(); err != nil {
		return err
	}

	// Cap the inbox and refresh its TTL.
	s.client.ZRemRangeByRank(ctx, key, 0, int64(-(dmInboxMax + 1)))
	s.client.Expire(ctx, key, dmInboxTTL)
	return nil
}

// GetDMsForUser returns the newest direct messages for a user,
// newest first.
func (s *RedisStore) GetDMsForUser(ctx context.Context, userID string, limit int) ([]models.DirectMessage, error) {
	results, err := s.client.ZRevRange(ctx, dmInboxKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.DirectMessage, 0, len(results))
	for _, data := range results {
		var dm models.DirectMessage
		if err := json.Unmarshal([]byte(data), &dm); err != nil {
			continue
		}
		messages = append(messages, dm)
	}
	return messages, nil
}
