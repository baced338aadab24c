package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func sessionKey(conversationID string) string {
	return fmt.Sprintf("session:%s", conversationID)
}

// SetSession stores a conversation session as JSON and refreshes its TTL.
func (c *Client) SetSession(ctx context.Context, conversationID string, session interface{}, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	err = c.client.Set(ctx, sessionKey(conversationID), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	logger.Debug("Session saved", zap.String("conversation_id", conversationID), zap.Duration("ttl", ttl))
	return nil
}

// GetSession decodes the stored session into out. It reports false when
// the session does not exist or has expired.
func (c *Client) GetSession(ctx context.Context, conversationID string, out interface{}) (bool, error) {
	data, err := c.client.Get(ctx, sessionKey(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get session: %w", err)
	}

	err = json.Unmarshal(data, out)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return true, nil
}
