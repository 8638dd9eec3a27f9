package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client caches rendered reports. Every shop has a generation counter;
// report keys embed it, so bumping the counter retires all of the shop's
// cached reports at once and old entries simply expire.
type Client struct {
	rdb       *redis.Client
	reportTTL time.Duration
}

func Initialize(redisURL string, reportTTL time.Duration) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewClient(rdb, reportTTL), nil
}

func NewClient(rdb *redis.Client, reportTTL time.Duration) *Client {
	if reportTTL <= 0 {
		reportTTL = 5 * time.Minute
	}
	return &Client{rdb: rdb, reportTTL: reportTTL}
}

func generationKey(userID string) string {
	return "report_gen:" + userID
}

func reportKey(userID string, gen int64, name string) string {
	return fmt.Sprintf("report:%s:%d:%s", userID, gen, name)
}

func (c *Client) generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get report generation: %w", err)
	}
	return gen, nil
}

func (c *Client) GetReport(ctx context.Context, userID, name string, dest interface{}) (int64, bool, error) {
	gen, err := c.generation(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	val, err := c.rdb.Get(ctx, reportKey(userID, gen, name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return gen, false, nil
	}
	if err != nil {
		return gen, false, fmt.Errorf("failed to get report: %w", err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return gen, false, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return gen, true, nil
}

func (c *Client) SetReport(ctx context.Context, userID string, gen int64, name string, value interface{}) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return c.rdb.Set(ctx, reportKey(userID, gen, name), jsonData, c.reportTTL).Err()
}

func (c *Client) InvalidateShop(ctx context.Context, userID string) error {
	return c.rdb.Incr(ctx, generationKey(userID)).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
