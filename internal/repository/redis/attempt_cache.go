package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"attendance-service/internal/client"
	"attendance-service/internal/util"
)

const (
	attemptPrefix = "attempt:"

	// AttemptWindow is how far back check-in attempts are retained for
	// rapid-attempt detection.
	AttemptWindow = 5 * time.Minute
)

// AttemptCache tracks check-in attempt timestamps per employee over a
// sliding window. It backs the rapid-attempt fraud check.
type AttemptCache struct {
	client *client.RedisClient
}

func NewAttemptCache(client *client.RedisClient) *AttemptCache {
	return &AttemptCache{client: client}
}

// RecordAttempt stores one attempt timestamp and trims entries that have
// fallen out of the window.
func (c *AttemptCache) RecordAttempt(employeeID string, at time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := attemptPrefix + employeeID
	member := strconv.FormatInt(at.UnixNano(), 10)

	if err := c.client.ZAddTimestamp(ctx, key, at, member); err != nil {
		util.Error("Failed to record check-in attempt", zap.String("employee_id", employeeID), zap.Error(err))
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	if err := c.client.ZTrimBefore(ctx, key, at.Add(-AttemptWindow)); err != nil {
		util.Error("Failed to trim attempt window", zap.String("employee_id", employeeID), zap.Error(err))
		return fmt.Errorf("failed to trim attempt window: %w", err)
	}
	// Let the whole key expire if the employee stops checking in.
	if err := c.client.Expire(ctx, key, 2*AttemptWindow); err != nil {
		util.Error("Failed to set attempt key TTL", zap.String("employee_id", employeeID), zap.Error(err))
		return fmt.Errorf("failed to set attempt key TTL: %w", err)
	}

	util.Debug("Check-in attempt recorded", zap.String("employee_id", employeeID), zap.Time("at", at))
	return nil
}

// RecentAttempts returns attempt timestamps within the window ending at now,
// oldest first.
func (c *AttemptCache) RecentAttempts(employeeID string, now time.Time) ([]time.Time, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := attemptPrefix + employeeID
	scores, err := c.client.ZScoresSince(ctx, key, now.Add(-AttemptWindow))
	if err != nil {
		util.Error("Failed to read attempt window", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to read attempt window: %w", err)
	}

	attempts := make([]time.Time, 0, len(scores))
	for _, s := range scores {
		attempts = append(attempts, time.UnixMilli(int64(s)).UTC())
	}
	return attempts, nil
}
