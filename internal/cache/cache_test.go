package cache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/killmongerinheret/vinted-watch/internal/cache"
)

func TestCacheDegradesWithoutAddr(t *testing.T) {
	c := cache.Connect("")
	require.Equal(t, "in-memory", c.Mode())

	_, ok := c.ProxyHealth(context.Background(), "http://1.2.3.4:80")
	require.False(t, ok)
	require.False(t, c.MightBeSeen(context.Background(), "A"))
}

func TestCacheRoundTripAgainstMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.Connect("redis://" + mr.Addr())
	require.Equal(t, "redis", c.Mode())

	ctx := context.Background()
	c.SetProxyHealth(ctx, "http://1.2.3.4:80", true)
	healthy, ok := c.ProxyHealth(ctx, "http://1.2.3.4:80")
	require.True(t, ok)
	require.True(t, healthy)

	require.False(t, c.MightBeSeen(ctx, "A"))
	c.MarkSeen(ctx, "A")
	require.True(t, c.MightBeSeen(ctx, "A"))
}
