// Package cache implements the content-addressed response cache: one entry
// per (session id, normalized query), expired by TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"shopassist/internal/logger"
)

// TTL matches the session timeout so a cached reply never outlives the
// conversation state that produced it.
const TTL = 30 * time.Minute

// Entry is the persisted cache record.
type Entry struct {
	QueryHash string `json:"query_hash"`
	Query     string `json:"query"`
	Response  string `json:"response"`
	Timestamp int64  `json:"timestamp"`
}

// Backend is a TTL-capable key-value store for cache entries.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ResponseCache caches final reply text per (session, normalized query).
type ResponseCache struct {
	backend Backend
	now     func() time.Time
}

// New creates a response cache on top of the given backend.
func New(backend Backend) *ResponseCache {
	return &ResponseCache{backend: backend, now: time.Now}
}

// Key hashes (sessionID, query) after trim+lowercase normalization. Two
// sessions asking the identical text get independent entries.
func Key(sessionID, query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", sessionID, normalized)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached reply for the session/query pair, deleting and
// missing on entries older than TTL.
func (c *ResponseCache) Get(ctx context.Context, sessionID, query string) (string, bool, error) {
	key := Key(sessionID, query)

	data, found, err := c.backend.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to read response cache: %w", err)
	}
	if !found {
		return "", false, nil
	}

	var entry Entry
	if err := sonic.Unmarshal(data, &entry); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("corrupt cache entry, dropping")
		_ = c.backend.Delete(ctx, key)
		return "", false, nil
	}

	if c.now().Unix()-entry.Timestamp > int64(TTL.Seconds()) {
		if err := c.backend.Delete(ctx, key); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("failed to purge stale cache entry")
		}
		return "", false, nil
	}

	return entry.Response, true, nil
}

// Put stores or overwrites the reply for the session/query pair.
func (c *ResponseCache) Put(ctx context.Context, sessionID, query, response string) error {
	key := Key(sessionID, query)

	entry := Entry{
		QueryHash: key,
		Query:     query,
		Response:  response,
		Timestamp: c.now().Unix(),
	}
	data, err := sonic.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := c.backend.Set(ctx, key, data, TTL); err != nil {
		return fmt.Errorf("failed to write response cache: %w", err)
	}
	return nil
}
