package cache

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "carrental:order_status:42", statusKey(42))
	assert.Equal(t, "carrental:dedup:notify:abc", dedupKey("abc"))
}

func TestUnreachableRedisReportsErrors(t *testing.T) {
	rdb := New("127.0.0.1:1", "", 0)
	defer rdb.Close()
	ctx := context.Background()

	_, ok, err := NewStatusCache(rdb, 0).GetOrderStatus(ctx, 1)
	assert.Error(t, err)
	assert.False(t, ok)

	_, err = NewNotifyDeduper(rdb, 0).Seen(ctx, "n-1")
	assert.Error(t, err)
}

// Runs against a real server when REDIS_ADDR is set.
func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping redis integration test: REDIS_ADDR not set")
	}
	rdb := New(addr, "", 0)
	defer rdb.Close()
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	orderID := time.Now().UnixNano()
	c := NewStatusCache(rdb, time.Minute)

	_, ok, err := c.GetOrderStatus(ctx, orderID)
	require.NoError(t, err)
	assert.False(t, ok)

	want := service.CachedStatus{UserID: 7, Status: domain.OrderStatusAwaitingPickup}
	require.NoError(t, c.SetOrderStatus(ctx, orderID, want))
	got, ok, err := c.GetOrderStatus(ctx, orderID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, *got)

	d := NewNotifyDeduper(rdb, time.Minute)
	id := "n-" + strconv.FormatInt(orderID, 10)
	seen, err := d.Seen(ctx, id)
	require.NoError(t, err)
	assert.False(t, seen)
	require.NoError(t, d.MarkSeen(ctx, id))
	seen, err = d.Seen(ctx, id)
	require.NoError(t, err)
	assert.True(t, seen)

	rdb.Del(ctx, statusKey(orderID), dedupKey(id))
}
