package database

import (
	"context"
	"errors"
	"sync"

	"github.com/go-redis/redis/v8"
)

var ErrKeyNotFound = errors.New("key not found")

// Connector is the interface that wraps the hot data store accessing method.
type Connector interface {
	Get(ctx context.Context, key string) (*string, error)
	Set(ctx context.Context, key string, value *string) error
	Delete(ctx context.Context, key string) error
	Publish(ctx context.Context, channel string, payload []byte) error
}

// InternalConnector is a connector that stores the values in memory.
type InternalConnector struct {
	mu        sync.RWMutex
	storage   map[string]string
	listeners map[string][]chan []byte
}

func NewInternalConnector() *InternalConnector {
	return &InternalConnector{
		storage:   make(map[string]string),
		listeners: make(map[string][]chan []byte),
	}
}

func (c *InternalConnector) Set(_ context.Context, key string, value *string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.storage[key] = *value
	return nil
}

func (c *InternalConnector) Get(_ context.Context, key string) (*string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if value, ok := c.storage[key]; ok {
		return &value, nil
	}
	return nil, ErrKeyNotFound
}

func (c *InternalConnector) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.storage[key]; ok {
		delete(c.storage, key)
		return nil
	}

	return ErrKeyNotFound
}

// Publish hands payload to every in-process listener of channel, skipping full ones.
func (c *InternalConnector) Publish(_ context.Context, channel string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, listener := range c.listeners[channel] {
		select {
		case listener <- payload:
		default:
		}
	}

	return nil
}

// Listen registers an in-process listener for channel.
func (c *InternalConnector) Listen(channel string, buffer int) <-chan []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	listener := make(chan []byte, buffer)
	c.listeners[channel] = append(c.listeners[channel], listener)
	return listener
}

// RedisConnector talks to Redis or any wire compatible store such as Dragonfly.
type RedisConnector struct {
	client *redis.Client
}

func NewRedisConnector(options *redis.Options) *RedisConnector {
	return &RedisConnector{
		client: redis.NewClient(options),
	}
}

func (c *RedisConnector) Set(ctx context.Context, key string, value *string) error {
	return c.client.Set(ctx, key, *value, 0).Err()
}

func (c *RedisConnector) Get(ctx context.Context, key string) (*string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	} else if err != nil {
		return nil, err
	}

	return &value, nil
}

func (c *RedisConnector) Delete(ctx context.Context, key string) error {
	deleted, err := c.client.Del(ctx, key).Result()
	if err != nil {
		return err
	}

	if deleted == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (c *RedisConnector) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.client.Publish(ctx, channel, payload).Err()
}

func (c *RedisConnector) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisConnector) Close() error {
	return c.client.Close()
}
