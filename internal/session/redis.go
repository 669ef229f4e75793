package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cmrconsole:session:"

// RedisStore persists session state in redis so several console instances
// can share it.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, addr, password string, db int, dialTimeout, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: dialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (r *RedisStore) Get(id string) (*State, bool, error) {
	data, err := r.client.Get(context.Background(), redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &st, true, nil
}

func (r *RedisStore) Put(st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.client.Set(context.Background(), redisKeyPrefix+st.ID, data, r.ttl).Err()
}

func (r *RedisStore) Delete(id string) error {
	return r.client.Del(context.Background(), redisKeyPrefix+id).Err()
}

// Close releases the underlying redis connection pool.
func (r *RedisStore) Close() error { return r.client.Close() }
