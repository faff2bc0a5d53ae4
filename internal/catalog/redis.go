package catalog

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/jittakal/geobin/internal/config/dto"
	apperrors "github.com/jittakal/geobin/internal/errors"
)

// DefaultRedisKey is the hash holding type name to spec entries.
const DefaultRedisKey = "geobin:schemas"

// RedisStore keeps specs as fields of one Redis hash.
type RedisStore struct {
	client *redis.Client
	key    string
}

// Ensure implementation satisfies interface at compile time.
var _ Store = (*RedisStore)(nil)

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, cfg dto.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisStore(client, cfg.Key), nil
}

// NewRedisStore uses DefaultRedisKey when key is empty.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Put(ctx context.Context, typeName, spec string) error {
	return s.client.HSet(ctx, s.key, typeName, spec).Err()
}

func (s *RedisStore) Get(ctx context.Context, typeName string) (string, error) {
	spec, err := s.client.HGet(ctx, s.key, typeName).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperrors.ErrSchemaNotFound
	}
	return spec, err
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	return s.client.HKeys(ctx, s.key).Result()
}

func (s *RedisStore) Delete(ctx context.Context, typeName string) error {
	n, err := s.client.HDel(ctx, s.key, typeName).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrSchemaNotFound
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
