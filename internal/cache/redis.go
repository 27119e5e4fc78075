// Package cache keeps order status and processed gateway notifications in
// Redis. The store stays the source of truth; every miss or error falls back
// to it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"carrental-backend/internal/logger"
	"carrental-backend/internal/service"

	"github.com/redis/go-redis/v9"
)

const (
	// order_status:{order_id} -> {"user_id":..,"status":..}
	keyOrderStatus = "carrental:order_status:%d"
	// dedup:notify:{notify_id} -> "1"
	keyNotifyDedup = "carrental:dedup:notify:%s"
)

var (
	DefaultStatusTTL = 5 * time.Minute
	DefaultDedupTTL  = 48 * time.Hour
)

func New(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func statusKey(orderID int64) string {
	return fmt.Sprintf(keyOrderStatus, orderID)
}

func dedupKey(notifyID string) string {
	return fmt.Sprintf(keyNotifyDedup, notifyID)
}

type StatusCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStatusCache(rdb redis.Cmdable, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusCache{rdb: rdb, ttl: ttl}
}

func (c *StatusCache) GetOrderStatus(ctx context.Context, orderID int64) (*service.CachedStatus, bool, error) {
	raw, err := c.rdb.Get(ctx, statusKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached status for order %d: %w", orderID, err)
	}

	var st service.CachedStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		logger.Warn("Discarding unreadable cached status", "orderID", orderID, "error", err)
		return nil, false, nil
	}
	return &st, true, nil
}

func (c *StatusCache) SetOrderStatus(ctx context.Context, orderID int64, st service.CachedStatus) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, statusKey(orderID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache status for order %d: %w", orderID, err)
	}
	return nil
}

// NotifyDeduper remembers notify ids whose settlement committed. A lost key
// only costs one more trip through the idempotent settle path.
type NotifyDeduper struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewNotifyDeduper(rdb redis.Cmdable, ttl time.Duration) *NotifyDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &NotifyDeduper{rdb: rdb, ttl: ttl}
}

func (d *NotifyDeduper) Seen(ctx context.Context, notifyID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, dedupKey(notifyID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check notify %s: %w", notifyID, err)
	}
	return n > 0, nil
}

func (d *NotifyDeduper) MarkSeen(ctx context.Context, notifyID string) error {
	return d.rdb.Set(ctx, dedupKey(notifyID), strconv.FormatInt(time.Now().Unix(), 10), d.ttl).Err()
}
