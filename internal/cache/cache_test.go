package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang/snappy"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/portyard/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestTTLCacheExpires(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewTTLCacheWithClock[string, int](fc.Now)

	c.Set("a", 1, time.Second)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	fc.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)

	c.Set("b", 2, 0)
	_, ok = c.Get("b")
	assert.False(t, ok, "non-positive ttl is not stored")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "role|alice", Key(" Role ", "", "ALICE"))
}

func TestStores(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewStore(client),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var got report
			ok, err := store.GetJSON(ctx, "dash", &got)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.SetJSON(ctx, "dash", report{Name: "yard", Count: 3}, time.Minute))
			ok, err = store.GetJSON(ctx, "dash", &got)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, report{Name: "yard", Count: 3}, got)

			require.NoError(t, store.Delete(ctx, "dash"))
			ok, err = store.GetJSON(ctx, "dash", &got)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRedisStoreHonorsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, store.SetJSON(ctx, "k", report{Name: "x"}, 30*time.Second))
	assert.True(t, mr.Exists(keyPrefix+"k"))
	mr.FastForward(31 * time.Second)

	var got report
	ok, err := store.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreCompressesPayloads(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, store.SetJSON(ctx, "k", report{Name: "yard", Count: 7}, time.Minute))
	raw, err := mr.Get(keyPrefix + "k")
	require.NoError(t, err)
	decoded, err := snappy.Decode(nil, []byte(raw))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"yard","count":7}`, string(decoded))

	// plain JSON left by an older writer still reads back
	require.NoError(t, mr.Set(keyPrefix+"legacy", `{"name":"old","count":1}`))
	var got report
	ok, err := store.GetJSON(ctx, "legacy", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, report{Name: "old", Count: 1}, got)
}
