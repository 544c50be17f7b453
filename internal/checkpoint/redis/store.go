// Package redis persists the crawl cursor under a Redis key.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

// DefaultKey is used when no key is configured.
const DefaultKey = "jobcrawler:cursor"

type client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Close() error
}

// Store keeps the cursor as a JSON string value.
type Store struct {
	client client
	key    string
}

// New connects to the Redis server at url (redis://host:port/db).
func New(ctx context.Context, url, key string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := goredis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(c, key), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(c client, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: c, key: key}
}

// Load reads the cursor. A missing key means no cursor.
func (s *Store) Load(ctx context.Context) (crawler.Cursor, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return crawler.Cursor{}, false, nil
	}
	if err != nil {
		return crawler.Cursor{}, false, fmt.Errorf("get %s: %w", s.key, err)
	}
	var cursor crawler.Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return crawler.Cursor{}, false, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return cursor, cursor.SearchTerm != "", nil
}

// Save stores the cursor without expiry.
func (s *Store) Save(ctx context.Context, cursor crawler.Cursor) error {
	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}

// Clear deletes the cursor key.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", s.key, err)
	}
	return nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}
