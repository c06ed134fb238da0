// Package queue provides the Redis-list trigger intake: the upstream CRUD
// application pushes contact events onto a Redis list, this consumer pops
// them and hands them to the trigger dispatcher.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/dripflow/dripflow/pkg/triggers"
)

const popTimeout = 1 * time.Second

// Callback receives each decoded trigger event.
type Callback func(ctx context.Context, event triggers.TriggerEvent) error

// Consumer pops trigger events from a Redis list.
type Consumer struct {
	queue      string
	connection map[string]string

	client   redis.UniversalClient
	callback Callback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewConsumer creates a queue consumer from configuration. Recognized keys:
// "queue" (required), "connection" with "addr", "password", "db".
func NewConsumer(config map[string]any, logger *slog.Logger) (*Consumer, error) {
	queue, _ := config["queue"].(string)
	if queue == "" {
		return nil, errors.New("queue consumer requires a queue name")
	}

	connectionConfig, _ := config["connection"].(map[string]any)

	connection := make(map[string]string)
	for k, v := range connectionConfig {
		if str, ok := v.(string); ok {
			connection[k] = str
		}
	}

	return &Consumer{
		queue:      queue,
		connection: connection,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "queue_consumer",
			"queue", queue,
		),
	}, nil
}

// Start connects to Redis and begins consuming in a background goroutine.
func (c *Consumer) Start(ctx context.Context, callback Callback) error {
	c.callback = callback

	err := c.initializeClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	c.wg.Add(1)

	go c.consume(ctx)

	return nil
}

func (c *Consumer) initializeClient(ctx context.Context) error {
	addr := c.connection["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0

	if dbStr := c.connection["db"]; dbStr != "" {
		var err error

		db, err = strconv.Atoi(dbStr)
		if err != nil {
			return fmt.Errorf("invalid db value: %w", err)
		}
	}

	c.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: c.connection["password"],
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.client.Ping(pingCtx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.logger.InfoContext(ctx, "connected to Redis", "addr", addr, "db", db)

	return nil
}

func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	c.logger.InfoContext(ctx, "queue consumer started")

	for {
		select {
		case <-c.stopCh:
			c.logger.InfoContext(ctx, "queue consumer stopped")

			return
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "context cancelled, stopping queue consumer")

			return
		default:
			err := c.processMessage(ctx)
			if err != nil {
				c.logger.ErrorContext(ctx, "error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context) error {
	result, err := c.client.BLPop(ctx, popTimeout, c.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	message := result[1]

	var event triggers.TriggerEvent
	if err := json.Unmarshal([]byte(message), &event); err != nil {
		// Malformed intake payloads are dropped, not retried.
		c.logger.WarnContext(ctx, "dropping malformed trigger message", "error", err)

		return nil
	}

	err = c.callback(ctx, event)
	if err != nil {
		c.logger.ErrorContext(ctx, "error dispatching trigger event",
			"organization_id", event.OrganizationID,
			"trigger_type", event.TriggerType,
			"error", err,
		)
	}

	return nil
}

// Stop halts the consumer and closes the Redis connection.
func (c *Consumer) Stop(ctx context.Context) error {
	close(c.stopCh)
	c.wg.Wait()

	if c.client != nil {
		err := c.client.Close()
		if err != nil {
			c.logger.ErrorContext(ctx, "error closing Redis client", "error", err)
		}
	}

	return nil
}
