// Package redisstore shares compiled module images between engine processes through redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/store"
	"github.com/go-redis/redis/v8"
)

const (
	DefaultPrefix = "payscript:binary"
	DefaultTTL    = 24 * time.Hour
)

// Store keys images as <prefix>:<tenant>:<type>:<object id>.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL sets the expiration of saved images. Zero keeps images until deleted.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// WithLogHandler sets a custom log handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(s *Store) {
		if handler != nil {
			s.logger = slog.New(handler)
		}
	}
}

// New wraps an existing client. Close releases it.
func New(client *redis.Client, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is nil", store.ErrInvalidArgument)
	}
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    DefaultTTL,
		logger: slog.Default().WithGroup("redisstore.Store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, password string, db int, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return New(client, opts...)
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(tenantID int, typ domain.ObjectType, objectID, scriptHash int64) string {
	return fmt.Sprintf("%s:%d:%s:%d:%s", s.prefix, tenantID, typ, objectID, store.HashKey(scriptHash))
}

func (s *Store) GetBinary(
	ctx context.Context,
	_ domain.DbContext,
	tenantID int,
	typ domain.ObjectType,
	objectID int64,
	scriptHash int64,
) ([]byte, error) {
	if err := store.ValidateKey(tenantID, typ.String(), objectID, scriptHash); err != nil {
		return nil, err
	}
	binary, err := s.client.Get(ctx, s.key(tenantID, typ, objectID, scriptHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrBinaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get binary: %w", err)
	}
	return binary, nil
}

func (s *Store) SaveBinary(
	ctx context.Context,
	_ domain.DbContext,
	tenantID int,
	typ domain.ObjectType,
	objectID int64,
	scriptHash int64,
	binary []byte,
) error {
	if err := store.ValidateKey(tenantID, typ.String(), objectID, scriptHash); err != nil {
		return err
	}
	if len(binary) == 0 {
		return fmt.Errorf("%w: empty binary", store.ErrInvalidArgument)
	}
	key := s.key(tenantID, typ, objectID, scriptHash)
	if err := s.client.Set(ctx, key, binary, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save binary: %w", err)
	}
	s.logger.Debug("Binary saved", "key", key, "size", len(binary), "ttl", s.ttl)
	return nil
}

// DeleteTenant removes every image of a tenant and returns how many were removed.
func (s *Store) DeleteTenant(ctx context.Context, tenantID int) (int, error) {
	pattern := fmt.Sprintf("%s:%d:*", s.prefix, tenantID)
	removed := 0
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", iter.Val(), err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan tenant keys: %w", err)
	}
	return removed, nil
}
