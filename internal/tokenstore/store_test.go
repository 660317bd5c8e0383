package tokenstore

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "t1", 1))
	id, ok, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), id)

	require.NoError(t, s.Put(ctx, "t1", 2))
	id, _, _ = s.Get(ctx, "t1")
	assert.Equal(t, int64(2), id, "put overwrites")

	require.NoError(t, s.Delete(ctx, "t1"))
	_, ok, err = s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, "t1"), "delete is idempotent")
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_Concurrent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok := "tok-" + strconv.Itoa(i)
			_ = m.Put(ctx, tok, int64(i))
			_, _, _ = m.Get(ctx, tok)
			if i%2 == 0 {
				_ = m.Delete(ctx, tok)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 25, m.Len())
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis store test")
	}
	r, err := NewRedis(addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	exerciseStore(t, r)
}
