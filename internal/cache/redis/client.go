package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/pkg/logger"
	"github.com/ai-audit/backend/pkg/utils"
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

func snapshotKey(platform models.Platform, username string) string {
	return "snapshot:" + utils.CacheKey(string(platform), username)
}

// SetSnapshot caches a snapshot for the staleness window. An expired
// key forces a fresh fetch from the connector.
func (c *Client) SetSnapshot(ctx context.Context, snap *models.ProfileSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	err = c.client.Set(ctx, snapshotKey(snap.Platform, snap.Username), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set snapshot cache: %w", err)
	}

	logger.Debug("Snapshot cached",
		zap.String("platform", string(snap.Platform)),
		zap.Duration("ttl", ttl),
	)
	return nil
}

func (c *Client) GetSnapshot(ctx context.Context, platform models.Platform, username string) (*models.ProfileSnapshot, bool, error) {
	data, err := c.client.Get(ctx, snapshotKey(platform, username)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get snapshot cache: %w", err)
	}

	var snap models.ProfileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	logger.Debug("Snapshot cache hit", zap.String("platform", string(platform)))
	return &snap, true, nil
}

func (c *Client) SetReport(ctx context.Context, report *models.AuditReport, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("report:%s", report.ID), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set report cache: %w", err)
	}

	logger.Debug("Report cached", zap.String("report_id", report.ID))
	return nil
}

func (c *Client) GetReport(ctx context.Context, reportID string) (*models.AuditReport, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("report:%s", reportID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get report cache: %w", err)
	}

	var report models.AuditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	logger.Debug("Report cache hit", zap.String("report_id", reportID))
	return &report, true, nil
}

// InvalidateSnapshots drops every cached snapshot, forcing the next
// audit to refetch from the platforms.
func (c *Client) InvalidateSnapshots(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "snapshot:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Snapshot cache invalidated")
	return nil
}

func (c *Client) IncrementMetric(ctx context.Context, metricName string) error {
	return c.client.Incr(ctx, fmt.Sprintf("metric:%s", metricName)).Err()
}

func (c *Client) GetMetric(ctx context.Context, metricName string) (int64, error) {
	val, err := c.client.Get(ctx, fmt.Sprintf("metric:%s", metricName)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}
