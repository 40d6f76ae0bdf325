//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/app"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/cache"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/conversation"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
)

func TestRedisClient(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{Addr: addr, Prefix: "it:"})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(ctx, "conv:a", []byte("one"), time.Minute))
	require.NoError(t, client.Set(ctx, "conv:b", []byte("two"), time.Minute))
	require.NoError(t, client.Set(ctx, "other", []byte("three"), time.Minute))

	got, err := client.Get(ctx, "conv:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	require.NoError(t, client.DeleteByPrefix(ctx, "conv:"))
	_, err = client.Get(ctx, "conv:b")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	got, err = client.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, []byte("three"), got)
}

func TestConversationSurvivesRestart(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	newManager := func() (*conversation.Manager, func()) {
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{Addr: addr})
		require.NoError(t, err)
		m := conversation.NewManager(nil, nil, conversation.ManagerConfig{Store: client, StoreTTL: time.Hour})
		return m, func() { client.Close() }
	}

	first, closeFirst := newManager()
	first.Update(ctx, "conv-1", "My fridge WRS325SDHZ is not making ice", conversation.RoleUser)
	closeFirst()

	// A fresh manager has nothing in memory and must reload from Redis.
	second, closeSecond := newManager()
	defer closeSecond()

	c, ok := second.Get(ctx, "conv-1")
	require.True(t, ok)
	assert.Equal(t, appliance.Refrigerator, c.ApplianceType)
	assert.Equal(t, 1, c.UserMessageCount)
	assert.True(t, second.IsFirstUserMessage(ctx, "conv-1"))

	_, mismatches := second.Update(ctx, "conv-1", "actually my dishwasher is broken", conversation.RoleUser)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "refrigerator", mismatches[0].Established)
}

func TestRedisBackedApp(t *testing.T) {
	addr := startRedis(t)
	cfg := testConfig(t)
	cfg.Cache.Driver = "redis"
	cfg.Cache.Redis.Addr = addr

	ctx := context.Background()
	a, err := app.New(ctx, cfg, observability.NewNopLogger(), app.Options{})
	require.NoError(t, err)

	a.Router.Handle(ctx, "redis-1", "My fridge is not cooling")
	require.NoError(t, a.Close())

	b, err := app.New(ctx, cfg, observability.NewNopLogger(), app.Options{})
	require.NoError(t, err)
	defer b.Close()

	c, ok := b.Conversations.Get(ctx, "redis-1")
	require.True(t, ok)
	assert.Equal(t, appliance.Refrigerator, c.ApplianceType)
	assert.Len(t, b.Conversations.History(ctx, "redis-1"), 2)
}
