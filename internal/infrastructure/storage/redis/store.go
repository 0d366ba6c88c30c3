package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

type Options struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces every key, e.g. "invoice-auditor:".
	KeyPrefix string
}

// Store persists values as plain redis strings without expiry.
type Store struct {
	client *goredis.Client
	prefix string
}

func New(ctx context.Context, opts Options) (*Store, error) {
	addr := opts.Addr
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, domain.WrapError(domain.ErrPersistence, "redis ping", err)
	}
	return &Store{client: client, prefix: opts.KeyPrefix}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", domain.WrapError(domain.ErrNotFound, "redis get", fmt.Errorf("key=%s", key))
		}
		return "", domain.WrapError(domain.ErrPersistence, "redis get", err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return domain.WrapError(domain.ErrPersistence, "redis set", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return domain.WrapError(domain.ErrPersistence, "redis del", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
