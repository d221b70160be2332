package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Set(ctx, "k", map[string]int{"a": 1}, 0))

	var got map[string]int
	found, err := s.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, got["a"])

	deleted, err := s.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	found, err = s.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "state", "v", time.Minute))
	assert.Equal(t, 1, s.Len())

	now = now.Add(time.Minute)

	var got string
	found, err := s.Get(ctx, "state", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, s.Len())
}

func TestStore_SetNXAndCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return now })

	ok, err := s.SetNX(ctx, "lease", "t1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "lease", "t2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := s.CompareAndDelete(ctx, "lease", "t2")
	require.NoError(t, err)
	assert.False(t, deleted)

	now = now.Add(2 * time.Minute)
	ok, err = s.SetNX(ctx, "lease", "t3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, err = s.CompareAndDelete(ctx, "lease", "t3")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestStore_PushRange(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Push(ctx, "history", fmt.Sprintf("e%d", i), 3))
	}

	all, err := s.Range(ctx, "history", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"e4", "e3", "e2"}, all)

	top, err := s.Range(ctx, "history", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"e4"}, top)

	empty, err := s.Range(ctx, "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
