// Package redisstore keeps documents in Redis so several processes can share
// one user's memory and offline queue.
package redisstore

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/adalundhe/parley/core/storage"
)

const defaultPrefix = "parley:"

// Config selects the server and key namespace.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store is a storage.Backend over Redis strings.
type Store struct {
	r      redis.UniversalClient
	prefix string
	owned  bool
}

// Open dials a new client from cfg.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, storage.Unavailable("connect", err)
	}
	s := New(client, cfg.Prefix)
	s.owned = true
	return s, nil
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{r: client, prefix: prefix}
}

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.r.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.Unavailable("get", err)
	}
	return b, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return storage.Unavailable("set", s.r.Set(ctx, s.key(key), value, 0).Err())
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return storage.Unavailable("remove", s.r.Del(ctx, s.key(key)).Err())
}

// Clear deletes every key under the store prefix, leaving the rest of the
// database alone.
func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.scan(ctx, s.prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return storage.Unavailable("clear", s.r.Del(ctx, keys...).Err())
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	raw, err := s.scan(ctx, s.key(prefix))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, s.prefix))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) scan(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	for {
		batch, next, err := s.r.Scan(ctx, cursor, escapeGlob(prefix)+"*", 100).Result()
		if err != nil {
			return nil, storage.Unavailable("scan", err)
		}
		out = append(out, batch...)
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

func (s *Store) Close() error {
	if s.owned {
		return s.r.Close()
	}
	return nil
}
