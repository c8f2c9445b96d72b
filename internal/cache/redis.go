package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const tokenKeyPrefix = "tiendia:token:"

// TokenCache keeps one auth token per chat in redis.
type TokenCache struct {
	rdb *redis.Client
}

func NewTokenCache(addr, password string, db int) (*TokenCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &TokenCache{rdb: rdb}, nil
}

func tokenKey(chatID int64) string {
	return tokenKeyPrefix + strconv.FormatInt(chatID, 10)
}

// Get returns the stored token, or "" when the chat has none.
func (c *TokenCache) Get(ctx context.Context, chatID int64) (string, error) {
	token, err := c.rdb.Get(ctx, tokenKey(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

func (c *TokenCache) Set(ctx context.Context, chatID int64, token string) error {
	if err := c.rdb.Set(ctx, tokenKey(chatID), token, 0).Err(); err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	return nil
}

func (c *TokenCache) Delete(ctx context.Context, chatID int64) error {
	if err := c.rdb.Del(ctx, tokenKey(chatID)).Err(); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// ListChatIDs scans the token keyspace.
func (c *TokenCache) ListChatIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	iter := c.rdb.Scan(ctx, 0, tokenKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id, err := strconv.ParseInt(strings.TrimPrefix(iter.Val(), tokenKeyPrefix), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan tokens: %w", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (c *TokenCache) Close() error {
	return c.rdb.Close()
}
