package receipt

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSequencePerSchoolAndYear(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	seq := NewRedisSequence(client, time.Second)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(ctx, "sch-1", 2024)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := seq.Next(ctx, "sch-1", 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	got, err = seq.Next(ctx, "sch-2", 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	assert.Equal(t, "3", mustGet(t, mr, "receipt_seq:sch-1:2024"))
}

func TestRedisSequenceOpensBreaker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	seq := NewRedisSequence(client, 100*time.Millisecond)
	mr.Close()

	for i := 0; i < 3; i++ {
		_, err := seq.Next(context.Background(), "sch-1", 2024)
		require.Error(t, err)
	}
	_, err := seq.Next(context.Background(), "sch-1", 2024)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
