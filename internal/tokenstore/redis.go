package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v7"
)

const redisKeyPrefix = "refresh:"

// Redis keeps refresh tokens in a Redis instance so several server
// processes can share them. Keys are written without a TTL.
type Redis struct {
	client *redis.Client
}

var _ Store = (*Redis)(nil)

func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Put(ctx context.Context, token string, userID int64) error {
	return r.client.WithContext(ctx).Set(redisKeyPrefix+token, userID, 0).Err()
}

func (r *Redis) Get(ctx context.Context, token string) (int64, bool, error) {
	v, err := r.client.WithContext(ctx).Get(redisKeyPrefix + token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt refresh entry: %w", err)
	}
	return id, true, nil
}

func (r *Redis) Delete(ctx context.Context, token string) error {
	return r.client.WithContext(ctx).Del(redisKeyPrefix + token).Err()
}

func (r *Redis) Close() error { return r.client.Close() }
