package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/flowdesk/flowdesk/internal/application/config"
	"github.com/flowdesk/flowdesk/internal/domain/models"
)

const sessionTTL = 10 * time.Minute

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// SessionCache is a TTL snapshot cache in front of the session repository.
type SessionCache interface {
	Set(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type sessionCache struct {
	client *redis.Client
}

func NewSessionCache(client *redis.Client) SessionCache {
	return &sessionCache{client: client}
}

func (c *sessionCache) Set(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, "session:"+session.ID.String(), data, sessionTTL).Err()
}

func (c *sessionCache) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	data, err := c.client.Get(ctx, "session:"+id.String()).Result()
	if err != nil {
		return nil, err
	}

	var session models.Session
	err = json.Unmarshal([]byte(data), &session)

	return &session, err
}

func (c *sessionCache) Delete(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, "session:"+id.String()).Err()
}
